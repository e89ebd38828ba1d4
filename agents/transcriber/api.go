package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"transcript-stack/agents/transcriber/youtube"
	"transcript-stack/internal/models"
	"transcript-stack/shared/ai"
	"transcript-stack/shared/prompt"
	"transcript-stack/shared/storage"
)

// ServerConfig wraps the HTTP knobs
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// BodyLimit is the maximum upload size in bytes
	BodyLimit int
}

// Server exposes the pipeline over a Fiber application
type Server struct {
	app     *fiber.App
	service *Service
	cfg     ServerConfig
}

func NewServer(cfg ServerConfig, service *Service) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          jsonError,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Format: "${time} | ${status} | ${latency} | ${method} ${path}\n"}))
	app.Use(cors.New())

	srv := &Server{app: app, service: service, cfg: cfg}
	srv.registerRoutes()
	return srv
}

// App exposes the underlying Fiber app, mostly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()

	log.Printf("Transcriber API listening on %s", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api/v1")
	api.Get("/analytics/summary", s.handleSummary)

	tr := api.Group("/transcripts")
	tr.Post("/", s.handleUpload)
	tr.Post("/text", s.handlePaste)
	tr.Post("/youtube", s.handleYouTube)
	tr.Get("/", s.handleList)
	tr.Get("/:id", s.handleGet)
	tr.Patch("/:id", s.handleUpdate)
	tr.Delete("/:id", s.handleDelete)
	tr.Get("/:id/download", s.handleDownload)

	tr.Post("/:id/rewrite", s.handleRewrite)
	tr.Get("/:id/rewrite", s.handleGetRewrite)
	tr.Delete("/:id/rewrite", s.handleDeleteRewrite)

	tr.Post("/:id/ideas", s.handleIdeas)
	tr.Get("/:id/ideas", s.handleGetIdeas)
	tr.Delete("/:id/ideas", s.handleDeleteIdeas)

	tr.Post("/:id/metadata", s.handleAnalyze)
	tr.Get("/:id/metadata", s.handleGetMetadata)
}

// jsonError renders every error as {"error": msg}
func jsonError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code = ferr.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// httpError maps service errors onto status codes
func httpError(op string, err error) error {
	var verr *prompt.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		return fiber.NewError(fiber.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrEmptyTranscript), errors.Is(err, ErrUnsupportedExport):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrCaptionsDisabled):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, youtube.ErrNoCaptions):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
}

func transcriptID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid transcript id")
	}
	return id, nil
}

// formValueBool reads a checkbox style form field; absent means def
func formValueBool(c *fiber.Ctx, key string, def bool) (bool, error) {
	v := c.FormValue(key)
	if v == "" {
		return def, nil
	}
	if v == "on" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid value for %s", key))
	}
	return b, nil
}

func formattingFromForm(c *fiber.Ctx) (models.FormattingConfig, error) {
	cfg := models.DefaultFormatting()
	var err error
	for _, f := range []struct {
		key string
		dst *bool
	}{
		{"add_paragraphs", &cfg.Paragraphs},
		{"add_headings", &cfg.Headings},
		{"fix_grammar", &cfg.FixGrammar},
		{"highlight_key_points", &cfg.HighlightKeyPoints},
	} {
		if *f.dst, err = formValueBool(c, f.key, *f.dst); err != nil {
			return cfg, err
		}
	}

	style, err := models.ParseDocumentStyle(c.FormValue("format_style"))
	if err != nil {
		return cfg, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	cfg.Style = style
	return cfg, nil
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	cfg, err := formattingFromForm(c)
	if err != nil {
		return err
	}

	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read upload")
	}

	view, err := s.service.Ingest(c.UserContext(), IngestRequest{
		Filename:   fh.Filename,
		Data:       data,
		SourceKind: models.SourceUpload,
		Formatting: cfg,
	})
	if err != nil {
		return httpError("ingest upload", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": view})
}

// formattingPayload mirrors the form toggles for JSON requests. Absent toggles default on.
type formattingPayload struct {
	Paragraphs         *bool  `json:"add_paragraphs"`
	Headings           *bool  `json:"add_headings"`
	FixGrammar         *bool  `json:"fix_grammar"`
	HighlightKeyPoints *bool  `json:"highlight_key_points"`
	Style              string `json:"format_style"`
}

func (p formattingPayload) config() (models.FormattingConfig, error) {
	cfg := models.DefaultFormatting()
	for _, f := range []struct {
		src *bool
		dst *bool
	}{
		{p.Paragraphs, &cfg.Paragraphs},
		{p.Headings, &cfg.Headings},
		{p.FixGrammar, &cfg.FixGrammar},
		{p.HighlightKeyPoints, &cfg.HighlightKeyPoints},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}

	style, err := models.ParseDocumentStyle(p.Style)
	if err != nil {
		return cfg, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	cfg.Style = style
	return cfg, nil
}

type pastePayload struct {
	formattingPayload
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

func (s *Server) handlePaste(c *fiber.Ctx) error {
	var payload pastePayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	cfg, err := payload.config()
	if err != nil {
		return err
	}
	if payload.Filename == "" {
		payload.Filename = "pasted.txt"
	}

	view, err := s.service.Ingest(c.UserContext(), IngestRequest{
		Filename:   payload.Filename,
		Data:       []byte(payload.Text),
		SourceKind: models.SourcePasted,
		Formatting: cfg,
	})
	if err != nil {
		return httpError("ingest text", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": view})
}

type youtubePayload struct {
	formattingPayload
	Video string `json:"video"`
}

func (s *Server) handleYouTube(c *fiber.Ctx) error {
	if !s.service.CaptionsEnabled() {
		return httpError("import captions", ErrCaptionsDisabled)
	}

	var payload youtubePayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if _, err := youtube.ParseVideoID(payload.Video); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	cfg, err := payload.config()
	if err != nil {
		return err
	}

	view, err := s.service.ImportYouTube(c.UserContext(), payload.Video, cfg)
	if err != nil {
		return httpError("import captions", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": view})
}

func (s *Server) handleList(c *fiber.Ctx) error {
	items, err := s.service.List(c.UserContext())
	if err != nil {
		return httpError("list transcripts", err)
	}
	return c.JSON(fiber.Map{"data": items, "meta": fiber.Map{"count": len(items)}})
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	view, err := s.service.Get(c.UserContext(), id)
	if err != nil {
		return httpError("get transcript", err)
	}
	return c.JSON(fiber.Map{"data": view})
}

type updatePayload struct {
	ProcessedContent *string `json:"processed_content"`
}

func (s *Server) handleUpdate(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	var payload updatePayload
	if err := c.BodyParser(&payload); err != nil || payload.ProcessedContent == nil {
		return fiber.NewError(fiber.StatusBadRequest, "processed_content is required")
	}

	ctx := c.UserContext()
	if err := s.service.UpdateProcessed(ctx, id, *payload.ProcessedContent); err != nil {
		return httpError("update transcript", err)
	}
	view, err := s.service.Get(ctx, id)
	if err != nil {
		return httpError("get transcript", err)
	}
	return c.JSON(fiber.Map{"data": view})
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	if err := s.service.Delete(c.UserContext(), id); err != nil {
		return httpError("delete transcript", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	export, err := s.service.Export(c.UserContext(), id, c.Query("format", ExportMarkdown))
	if err != nil {
		return httpError("export transcript", err)
	}

	c.Set(fiber.HeaderContentType, export.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.Filename))
	return c.Send(export.Body)
}

type rewritePayload struct {
	Options models.RewriteConfig `json:"options"`
}

func (s *Server) handleRewrite(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	var payload rewritePayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid rewrite options: %v", err))
	}

	content, err := s.service.Rewrite(c.UserContext(), id, payload.Options)
	if err != nil {
		return generationResponse(c, "rewrite transcript", content, err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"content": content, "options": payload.Options}})
}

// generationResponse returns the "ERROR:" text alongside a 502 for model failures
func generationResponse(c *fiber.Ctx, op, content string, err error) error {
	var gerr *ai.GenerationError
	if errors.As(err, &gerr) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": gerr.Message,
			"data":  fiber.Map{"content": content},
		})
	}
	return httpError(op, err)
}

func (s *Server) handleGetRewrite(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	rec, err := s.service.GetRewrite(c.UserContext(), id)
	if err != nil {
		return httpError("get rewrite", err)
	}
	if rec == nil {
		return fiber.NewError(fiber.StatusNotFound, "no rewrite for this transcript")
	}
	return c.JSON(fiber.Map{"data": rec})
}

func (s *Server) handleDeleteRewrite(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	if err := s.service.DeleteRewrite(c.UserContext(), id); err != nil {
		return httpError("delete rewrite", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleIdeas(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	content, err := s.service.GenerateIdeas(c.UserContext(), id)
	if err != nil {
		return generationResponse(c, "generate ideas", content, err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"content": content}})
}

func (s *Server) handleGetIdeas(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	ideas, err := s.service.GetIdeas(c.UserContext(), id)
	if err != nil {
		return httpError("get ideas", err)
	}
	if ideas == nil {
		return fiber.NewError(fiber.StatusNotFound, "no post ideas for this transcript")
	}
	return c.JSON(fiber.Map{"data": ideas})
}

func (s *Server) handleDeleteIdeas(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	if err := s.service.DeleteIdeas(c.UserContext(), id); err != nil {
		return httpError("delete ideas", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	md, err := s.service.Reanalyze(c.UserContext(), id)
	if err != nil {
		return httpError("analyze transcript", err)
	}
	return c.JSON(fiber.Map{"data": md})
}

func (s *Server) handleGetMetadata(c *fiber.Ctx) error {
	id, err := transcriptID(c)
	if err != nil {
		return err
	}
	md, err := s.service.GetMetadata(c.UserContext(), id)
	if err != nil {
		return httpError("get metadata", err)
	}
	if md == nil {
		return fiber.NewError(fiber.StatusNotFound, "transcript has not been analyzed")
	}
	return c.JSON(fiber.Map{"data": md})
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	summary, err := s.service.Summary(c.UserContext())
	if err != nil {
		return httpError("analytics summary", err)
	}
	return c.JSON(fiber.Map{"data": summary})
}
