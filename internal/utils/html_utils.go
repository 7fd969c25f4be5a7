package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainExcerpt 从渲染后的 HTML 中提取纯文本摘要，最多 limit 个字符
func PlainExcerpt(htmlStr string, limit int) string {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	// 代码块和图片不进入摘要
	doc.Find("pre, img, script, style").Remove()

	text := strings.Join(strings.Fields(doc.Text()), " ")
	runes := []rune(text)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return text
}
