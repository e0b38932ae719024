package redistmpl

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/raniellyferreira/redistmpl/reply"
)

// Get returns the string value of key. found is false when the key does not exist.
func (s *Session) Get(ctx context.Context, key string) (value string, found bool, err error) {
	n, err := s.Do(ctx, []byte("GET"), []byte(key))
	if err != nil {
		return "", false, err
	}

	switch n.Kind {
	case reply.KindNil:
		return "", false, nil
	case reply.KindString, reply.KindStatus:
		return string(n.Str), true, nil
	default:
		return "", false, s.unexpected("GET", n)
	}
}

// Set stores value under key
func (s *Session) Set(ctx context.Context, key, value string) error {
	_, err := s.Do(ctx, []byte("SET"), []byte(key), []byte(value))
	return err
}

// SetEx stores value under key with a time to live, rounded down to whole seconds
func (s *Session) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	secs := int64(ttl / time.Second)
	_, err := s.Do(ctx, []byte("SETEX"), []byte(key), []byte(strconv.FormatInt(secs, 10)), []byte(value))
	return err
}

// Del removes key and returns the number of keys removed
func (s *Session) Del(ctx context.Context, key string) (int64, error) {
	return s.integer(ctx, "DEL", []byte("DEL"), []byte(key))
}

// AppendValue appends value to the string at key and returns the new length
func (s *Session) AppendValue(ctx context.Context, key, value string) (int64, error) {
	return s.integer(ctx, "APPEND", []byte("APPEND"), []byte(key), []byte(value))
}

func (s *Session) integer(ctx context.Context, name string, argv ...[]byte) (int64, error) {
	n, err := s.Do(ctx, argv...)
	if err != nil {
		return 0, err
	}
	if n.Kind != reply.KindInteger {
		return 0, s.unexpected(name, n)
	}
	return n.Integer, nil
}

func (s *Session) unexpected(name string, n reply.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail(newError(CodeCommandError, fmt.Sprintf("%s returned an unexpected %s reply", name, n.Kind), nil))
}
