package utils

import (
	"bytes"
	stdhtml "html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	policy       = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

func init() {
	policy.AllowImages()
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)
}

// RenderMarkdown 渲染帖子内容并清洗 HTML
func RenderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return policy.Sanitize(source)
	}
	return string(policy.SanitizeBytes(buf.Bytes()))
}

// StripTags 去掉所有 HTML 标签，用于标题和评论等纯文本字段
func StripTags(s string) string {
	return strings.TrimSpace(stdhtml.UnescapeString(strictPolicy.Sanitize(s)))
}
