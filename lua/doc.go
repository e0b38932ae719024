// Package lua exposes sessions to Lua scripts run with gopher-lua.
//
// Scripts see these global functions:
//   - redis_connect(host, port) and redis_free()
//   - redis_command(command, vars [, locals]) returning a reply table
//   - redis_command_append(command, vars [, locals]) and redis_get_reply([out])
//   - redis_error() returning code and message, and redis_error_clear()
//   - redis_get, redis_set, redis_setex, redis_del and redis_append
//
// Template variables prefixed with "l." are read from the locals table when
// one is passed, otherwise from the local variables of the calling function.
// Variables prefixed with "g." are read from the script globals.
//
// Reply tables carry the reply kind under "type", text under "string" and
// "length", numbers under "integer", and array elements at indexes 1..n.
package lua
