package mongo

import "strings"

var unescaper = strings.NewReplacer("%25", "%", "%2E", ".", "%24", "$")

// EscapeKey turns a category into a safe document field name. '.' would be
// read as a path separator and a leading '$' as an operator, so both are
// percent-encoded along with '%' itself. The empty category maps to "%",
// which no escaped non-empty key can produce.
func EscapeKey(category string) string {
	if category == "" {
		return "%"
	}
	key := strings.ReplaceAll(category, "%", "%25")
	key = strings.ReplaceAll(key, ".", "%2E")
	if strings.HasPrefix(key, "$") {
		key = "%24" + key[1:]
	}
	return key
}

// UnescapeKey reverses EscapeKey.
func UnescapeKey(key string) string {
	if key == "%" {
		return ""
	}
	return unescaper.Replace(key)
}
