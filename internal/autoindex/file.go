package autoindex

import (
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
)

const (
	defaultContentType = "application/octet-stream"
	// sniffLen is how much of a text file is inspected for its charset.
	sniffLen = 8 << 10
)

// builtinTypes covers extensions whose system mime.types entry is often
// missing or differs between hosts.
var builtinTypes = map[string]string{
	".css":      "text/css",
	".csv":      "text/csv",
	".htm":      "text/html",
	".html":     "text/html",
	".js":       "text/javascript",
	".mjs":      "text/javascript",
	".json":     "application/json",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".log":      "text/plain",
	".ini":      "text/plain",
	".conf":     "text/plain",
	".toml":     "application/toml",
	".yaml":     "application/yaml",
	".yml":      "application/yaml",
	".xml":      "application/xml",
	".svg":      "image/svg+xml",
	".png":      "image/png",
	".jpg":      "image/jpeg",
	".jpeg":     "image/jpeg",
	".gif":      "image/gif",
	".webp":     "image/webp",
	".ico":      "image/vnd.microsoft.icon",
	".pdf":      "application/pdf",
	".zip":      "application/zip",
	".gz":       "application/gzip",
	".tgz":      "application/gzip",
	".tar":      "application/x-tar",
	".wasm":     "application/wasm",
	".mp3":      "audio/mpeg",
	".mp4":      "video/mp4",
	".woff":     "font/woff",
	".woff2":    "font/woff2",
}

// textTypes are non text/* types that still carry a charset.
var textTypes = map[string]struct{}{
	"application/json":       {},
	"application/javascript": {},
	"application/xml":        {},
	"application/toml":       {},
	"application/yaml":       {},
	"image/svg+xml":          {},
}

// contentTypeFor resolves the bare media type from the file extension.
func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return defaultContentType
	}
	if t, ok := builtinTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if media, _, err := mime.ParseMediaType(t); err == nil {
			return media
		}
		return strings.TrimSpace(strings.SplitN(t, ";", 2)[0])
	}
	return defaultContentType
}

func isTextType(media string) bool {
	if strings.HasPrefix(media, "text/") {
		return true
	}
	_, ok := textTypes[media]
	return ok
}

// detectCharset inspects the head of r. Valid UTF-8 (including plain ASCII)
// short-circuits; otherwise chardet picks the best match. An empty result
// means no confident guess.
func detectCharset(r io.ReaderAt, size int64) string {
	n := int64(sniffLen)
	if size < n {
		n = size
	}
	if n <= 0 {
		return "utf-8"
	}
	buf := make([]byte, n)
	read, err := r.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return ""
	}
	buf = buf[:read]

	if validUTF8Prefix(buf, int64(read) < size) {
		return "utf-8"
	}
	result, err := chardet.NewTextDetector().DetectBest(buf)
	if err != nil || result == nil || result.Charset == "" {
		return ""
	}
	return strings.ToLower(result.Charset)
}

// validUTF8Prefix tolerates a rune cut off at the end of a truncated sample.
func validUTF8Prefix(buf []byte, truncated bool) bool {
	if utf8.Valid(buf) {
		return true
	}
	if !truncated {
		return false
	}
	for cut := 1; cut < utf8.UTFMax && cut < len(buf); cut++ {
		if utf8.Valid(buf[:len(buf)-cut]) {
			return true
		}
	}
	return false
}
