package handler

import (
	"bytes"
	"log"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// renderMarkdown 将目标/习惯的备注渲染为经过清洗的 HTML
func renderMarkdown(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return string(sanitizer.SanitizeBytes(buf.Bytes())), nil
}

func descriptionHTML(content string) string {
	rendered, err := renderMarkdown(content)
	if err != nil {
		log.Printf("[handler] render markdown failed: %v", err)
		return ""
	}
	return rendered
}
