package redistmpl

import (
	"bytes"
	"fmt"
	"io/fs"
	"net"
	"strconv"
)

// resource is the parsed form of a connection resource: host:port or host:port:db
type resource struct {
	host string
	port int
	db   int
}

func (r resource) addr() string {
	return net.JoinHostPort(r.host, strconv.Itoa(r.port))
}

// loadResource reads and parses name from fsys. An unreadable resource is
// reported as ConfigNotFound.
func loadResource(fsys fs.FS, name string) (resource, *Error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return resource{}, newError(CodeConfigNotFound, fmt.Sprintf("connection resource %q not found", name), err)
	}
	return parseResource(data)
}

// parseResource parses the colon-delimited resource format
func parseResource(data []byte) (resource, *Error) {
	fields := bytes.Split(bytes.TrimSpace(data), []byte(":"))
	if len(fields) != 2 && len(fields) != 3 {
		return resource{}, newError(CodeConfigInvalid,
			fmt.Sprintf("connection resource must be host:port or host:port:db, got %d fields", len(fields)), nil)
	}

	r := resource{host: string(fields[0])}
	if r.host == "" {
		return resource{}, newError(CodeConfigInvalid, "connection resource has an empty host", nil)
	}

	port, err := strconv.Atoi(string(fields[1]))
	if err != nil || port <= 0 || port > 65535 {
		return resource{}, newError(CodeConfigInvalid, fmt.Sprintf("connection resource has an invalid port %q", fields[1]), err)
	}
	r.port = port

	if len(fields) == 3 {
		db, err := strconv.Atoi(string(fields[2]))
		if err != nil || db < 0 {
			return resource{}, newError(CodeConfigInvalid, fmt.Sprintf("connection resource has an invalid database %q", fields[2]), err)
		}
		r.db = db
	}

	return r, nil
}
