package docstore

import (
	"strings"
)

// Clean 去掉首尾斜杠，"/Community/a/" -> "Community/a"
func Clean(p string) string {
	return strings.Trim(p, "/")
}

// Join 拼接路径片段
func Join(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if c := Clean(part); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return strings.Join(cleaned, "/")
}

// IsDocumentPath reports whether p names a document (even number of segments).
func IsDocumentPath(p string) bool {
	p = Clean(p)
	if p == "" {
		return false
	}
	return len(strings.Split(p, "/"))%2 == 0
}

// Split 将文档路径拆分为 所属集合路径 和 文档 ID
func Split(docPath string) (collectionPath, id string) {
	docPath = Clean(docPath)
	i := strings.LastIndex(docPath, "/")
	if i < 0 {
		return "", docPath
	}
	return docPath[:i], docPath[i+1:]
}

// CollectionID 返回集合路径的最后一段，例如 "Community/a/Post" -> "Post"
func CollectionID(collectionPath string) string {
	_, id := Split(collectionPath)
	return id
}
