package main

import (
	"embed"
	"html/template"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

//go:embed templates/*.html
var templateFS embed.FS

func loadTemplates() *template.Template {
	funcs := template.FuncMap{
		"imageURL": imageURL,
		"quizPath": quizPath,
		"optionField": func(questionID uint) string {
			return answerField(questionID)
		},
		"formatTime": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

func setupRouter(db *gorm.DB, store ImageStore, cfg *Config) *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = maxImageSize + 1<<20

	// --- CORS ---
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.SetHTMLTemplate(loadTemplates())
	r.Static("/media", store.Root())

	// Optional health check
	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/stats/", Stats(db))

	// --- Pages (every visitor gets a taker cookie) ---
	pages := r.Group("/", EnsureTaker(db, cfg.SecureCookies))
	{
		pages.GET("/", QuizList(db))

		// Authoring
		pages.GET("/manage/", ManageQuizzes(db))
		pages.POST("/categories/", CreateCategoryHandler(db))
		pages.POST("/categories/:id/delete/", DeleteCategoryHandler(db, store))
		pages.GET("/create/", CreateQuizPage(db))
		pages.POST("/create/", CreateQuizSubmit(db, store))
		pages.GET("/:id/edit/", EditQuizPage(db))
		pages.POST("/:id/edit/", EditQuizSubmit(db, store))
		pages.GET("/:id/delete/", DeleteQuizPage(db))
		pages.POST("/:id/delete/", DeleteQuizSubmit(db, store))

		// Taking
		pages.GET("/:id/take/", TakeQuiz(db))
		pages.GET("/:id/save/", SaveAnswersRedirect())
		pages.POST("/:id/save/", SaveAnswers(db))
		pages.GET("/:id/results/", QuizResults(db))
	}
	return r
}

func main() {
	cfg := LoadConfig()
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// 1) DB
	db, err := OpenDB(cfg)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// 2) Seed (if empty)
	isEmpty, err := IsQuizTableEmpty(db)
	if err != nil {
		log.Printf("check quiz table: %v; skipping seed", err)
	}
	if isEmpty {
		if _, err := os.Stat(cfg.SeedPath); err == nil {
			if err := SeedFromJSON(db, cfg.SeedPath); err != nil {
				log.Fatalf("seed: %v", err)
			}
			log.Printf("Seeded quizzes from %s", cfg.SeedPath)
		} else {
			log.Printf("No seed file at %s; running with empty DB", cfg.SeedPath)
		}
	}

	// 3) Media + background jobs
	store, err := NewFSImageStore(cfg.MediaDir)
	if err != nil {
		log.Fatalf("media dir: %v", err)
	}
	janitor, err := StartJanitor(db, cfg.JanitorSchedule, cfg.SubmissionRetention)
	if err != nil {
		log.Fatalf("janitor: %v", err)
	}
	defer janitor.Stop()

	// 4) Router
	r := setupRouter(db, store, cfg)

	// --- Server ---
	log.Printf("Listening on :%s (driver=%s, SecureCookies=%v, media=%s)", cfg.Port, cfg.DBDriver, cfg.SecureCookies, store.Root())
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("run: %v", err)
	}
}
