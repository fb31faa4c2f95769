// Package web embeds the HTML templates and static assets of the portal.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var funcs = template.FuncMap{
	"datetime": datetime,
	"filesize": humanSize,
	"inc":      func(i int) int { return i + 1 },
}

// Templates 解析全部页面模板；页面名即文件名，如 "login.html"
func Templates() (*template.Template, error) {
	return template.New("portal").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// Static 静态资源，挂载在 /static
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// datetime 接受 time.Time 或 *time.Time
func datetime(v any) string {
	var t time.Time
	switch tv := v.(type) {
	case time.Time:
		t = tv
	case *time.Time:
		if tv != nil {
			t = *tv
		}
	}
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
