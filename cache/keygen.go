package cache

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// fileNameReplacer maps characters that are problematic in file names
var fileNameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	"#", "_",
	"&", "_",
	"=", "_",
	"@", "_",
	" ", "_",
)

// FileName converts a cache key (a canonical node URI) to a file name.
// Distinct keys may share a file name; FileCache stores the key alongside the
// entry and treats a mismatch as a miss.
func FileName(key string) string {
	result := fileNameReplacer.Replace(key)

	// Limit length and use hash for very long keys
	if len(result) > 200 {
		hash := md5.Sum([]byte(key))
		return fmt.Sprintf("long_%x.json", hash)
	}

	return result + ".json"
}
