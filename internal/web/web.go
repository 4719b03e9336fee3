// Package web содержит HTML-шаблоны и статику веб-клиента.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"storylens/internal/card"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// DefaultTemplatesDir - каталог шаблонов в дереве исходников (для TEMPLATES_DEBUG).
const DefaultTemplatesDir = "internal/web/templates"

// SkeletonCount - число заглушек карточек, пока список грузится.
const SkeletonCount = 6

// FuncMap - функции, доступные в шаблонах.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"formatSize":   FormatSize,
		"deletePrompt": func() string { return card.DeletePrompt },
		"seq": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i
			}
			return out
		},
	}
}

// FormatSize - размер файла для подписи предпросмотра.
func FormatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

// ParseTemplates разбирает встроенные шаблоны.
func ParseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(FuncMap()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse embedded templates: %w", err)
	}
	return tmpl, nil
}

// Install подключает шаблоны и статику к роутеру.
// Непустой dir - шаблоны читаются с диска, в debug-режиме gin перечитывает их на каждый запрос.
func Install(router *gin.Engine, dir string) error {
	router.SetFuncMap(FuncMap())
	if dir != "" {
		router.LoadHTMLGlob(filepath.Join(dir, "*.html"))
	} else {
		tmpl, err := ParseTemplates()
		if err != nil {
			return err
		}
		router.SetHTMLTemplate(tmpl)
	}

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("static assets: %w", err)
	}
	router.StaticFS("/static", http.FS(static))
	return nil
}
