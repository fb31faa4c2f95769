package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"portal/internal/validators"
	"portal/internal/web"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func (h *HTTPHandler) Home(c *gin.Context) {
	if CurrentUser(c) == nil {
		h.redirect(c, "/auth/login")
		return
	}
	h.render(c, http.StatusOK, "index.html", gin.H{"Title": "ホーム"})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// corsMiddleware 未配置来源时返回 nil；"*" 表示允许所有来源
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		AllowWildcard: true,
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "":
		case origin == "*":
			cfg.AllowAllOrigins = true
		case strings.Contains(origin, "*"),
			strings.HasPrefix(origin, "http://"),
			strings.HasPrefix(origin, "https://"):
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		default:
			logrus.WithField("origin", origin).Warn("ignore invalid CORS origin")
		}
	}
	if cfg.AllowAllOrigins {
		cfg.AllowOrigins = nil
		return cors.New(cfg)
	}
	if len(cfg.AllowOrigins) == 0 {
		return nil
	}
	cfg.AllowCredentials = true
	return cors.New(cfg)
}

// multipartOverhead 上传体里除文件外的边界与表单字段
const multipartOverhead = 1 << 20

// BodyLimit 限制请求体大小。声明长度超限的请求直接拒绝，
// 未声明长度的在读取超限时由处理器得到 *http.MaxBytesError。
func (h *HTTPHandler) BodyLimit() gin.HandlerFunc {
	limit := h.cfg.MaxUploadBytes + multipartOverhead
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			logrus.WithFields(logrus.Fields{
				"path":           c.Request.URL.Path,
				"content_length": c.Request.ContentLength,
			}).Warn("request_body_too_large")
			c.Abort()
			h.renderError(c, http.StatusRequestEntityTooLarge, validators.ErrFileTooLarge.Error())
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// Router 组装路由。ctx 结束时停止限流器的清理协程；gatherer 为空时使用默认注册表。
func (h *HTTPHandler) Router(ctx context.Context, gatherer prometheus.Gatherer) *gin.Engine {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	go h.limiter.Run(ctx, time.Minute)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	// 编码后的 "/" 留在同一个路径参数里，交给处理器拒绝
	r.UseRawPath = true

	r.Use(LoggingMiddleware())
	r.Use(h.Recovery())
	if mw := corsMiddleware(h.cfg.CORSAllowOrigins); mw != nil {
		r.Use(mw)
	}
	r.Use(h.LoadSession())
	r.Use(h.BodyLimit())
	r.Use(h.CSRF())

	r.NoRoute(h.NotFound)
	r.NoMethod(h.MethodNotAllowed)

	r.StaticFS("/static", http.FS(web.Static()))
	r.GET("/health", Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/", h.Home)

	limited := h.RateLimit()
	login := h.RequireLogin()
	admin := h.RequireAdmin()

	authGroup := r.Group("/auth")
	authGroup.GET("/login", h.LoginPage)
	authGroup.POST("/login", limited, h.LoginSubmit)
	authGroup.GET("/register", h.RegisterPage)
	authGroup.POST("/register", limited, h.RegisterSubmit)
	authGroup.GET("/signup", h.RegisterPage)
	authGroup.POST("/signup", limited, h.RegisterSubmit)
	authGroup.POST("/logout", h.Logout)

	adminGroup := r.Group("/admin", login, admin)
	adminGroup.GET("/sys", h.SysInfo)
	adminGroup.GET("/admin_users", h.AdminUsersPage)
	adminGroup.POST("/admin_users", h.AdminUsersSubmit)

	crud := r.Group("/crud", login)
	crud.GET("/", h.CrudIndex)
	crud.GET("/product/:id", h.ProductPage)
	crud.GET("/account", h.AccountPage)
	crud.POST("/account", h.AccountSubmit)
	crud.POST("/addresses", h.AddressesSubmit)

	contact := r.Group("/contact")
	contact.GET("/", h.ContactPage)
	contact.POST("/", limited, h.ContactSubmit)
	contact.GET("/complete", h.ContactComplete)

	shogiGroup := r.Group("/shogi")
	shogiGroup.GET("/", h.ShogiIndex)
	shogiGroup.GET("/board", h.ShogiBoard)
	shogiGroup.GET("/kifu-examples", h.KifuExamples)
	shogiGroup.GET("/new", h.KifuNewPage)
	shogiGroup.POST("/new", h.KifuNewSubmit)
	shogiGroup.GET("/kifu", h.KifuList)
	shogiGroup.GET("/kifu/:filename", h.KifuView)

	shogiAPI := shogiGroup.Group("/api")
	shogiAPI.POST("/move", h.APIMove)
	shogiAPI.GET("/kifu", h.APIKifu)
	shogiAPI.GET("/kifu/:filename", h.APIKifuFile)
	shogiAPI.POST("/reset", h.APIReset)
	shogiAPI.POST("/save", h.APISave)

	det := r.Group("/detector", login)
	det.GET("/", h.DetectorIndex)
	det.GET("/gallery", h.DetectorGallery)
	det.GET("/results", h.DetectorResults)
	det.GET("/upload", h.UploadPage)
	det.POST("/upload", h.UploadSubmit)
	det.GET("/detect/:id", h.DetectPage)
	det.POST("/detect/:id", h.DetectPage)
	det.POST("/delete/:id", h.DeleteImage)
	det.GET("/uploads/*filename", h.ServeUpload)
	det.GET("/image/*filename", h.ServeUpload)
	det.GET("/images/*filename", h.ServeUpload)
	det.POST("/api/detect", h.APIDetect)
	det.GET("/api/results/:id", h.APIResults)

	apiGroup := r.Group("/api")
	apiAuth := apiGroup.Group("/auth")
	apiAuth.POST("/register", limited, h.APIRegister)
	apiAuth.POST("/login", limited, h.APILogin)
	apiAuth.GET("/me", login, h.Me)

	users := apiGroup.Group("/users", login, admin)
	users.GET("", h.ListUsers)
	users.POST("", h.CreateUser)
	users.PATCH("/:id", h.UpdateUser)
	users.DELETE("/:id", h.DeleteUser)

	return r
}
