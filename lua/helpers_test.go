package lua

import (
	"os"
	"strconv"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
