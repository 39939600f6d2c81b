// Package api provides the REST API server for notesampler
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/james-see/notesampler/pkg/config"
	"github.com/james-see/notesampler/pkg/instrument"
	"github.com/james-see/notesampler/pkg/logging"
	"github.com/james-see/notesampler/pkg/mapping"
	"github.com/james-see/notesampler/pkg/sound"
	"github.com/james-see/notesampler/pkg/timeline"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title NoteSampler API
// @version 1.0
// @description Decode MIDI files into timelines and play notes from sample groups
// @host localhost:8080
// @BasePath /api/v1

// Server holds the state shared by the handlers.
type Server struct {
	cfg     *config.Config
	log     *zap.Logger
	library *sound.Library
	store   *mapping.Store
	player  *sound.Manager

	mu       sync.RWMutex
	resolver *instrument.Resolver
}

// NewServer wires the handlers to a sample library, mapping store and player.
func NewServer(cfg *config.Config, library *sound.Library, store *mapping.Store, player *sound.Manager, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	resolver, err := cfg.Resolver()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		library:  library,
		store:    store,
		player:   player,
		resolver: resolver,
	}, nil
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(logging.GinLogger(s.log), gin.Recovery())

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/midi/parse", s.handleParse)

		v1.GET("/instruments", s.listInstruments)
		v1.PUT("/instruments", s.replaceInstruments)
		v1.POST("/instruments/reset", s.resetInstruments)

		v1.POST("/notes/play", s.playNote)
		v1.GET("/notes/:note/group", s.getNoteGroup)
		v1.PUT("/notes/:note/group", s.setNoteGroup)
		v1.GET("/sound-groups", s.listSoundGroups)

		v1.POST("/mapping/reset", s.resetMapping)
		v1.GET("/mappings", s.listMappings)
		v1.POST("/mappings/:name", s.saveMapping)
		v1.POST("/mappings/:name/load", s.loadMapping)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer serves the API on the configured port until ctx is done.
func (s *Server) StartServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.Router(),
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("api listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) currentResolver() *instrument.Resolver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "notesampler",
	})
}

type parseResult struct {
	summary timeline.Summary
	err     error
}

// handleParse godoc
// @Summary Decode a MIDI file
// @Description Upload a Standard MIDI File and receive its merged, time-ordered event timeline
// @Tags midi
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file to decode"
// @Success 200 {object} timeline.Summary
// @Failure 400 {object} map[string]string
// @Failure 415 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 504 {object} map[string]string
// @Router /midi/parse [post]
func (s *Server) handleParse(c *gin.Context) {
	limit := int64(s.cfg.Server.MaxUploadMB) << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	if !timeline.Sniff(data) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": fmt.Sprintf("%s is not a MIDI file", header.Filename)})
		return
	}

	ctx := c.Request.Context()
	if timeout := time.Duration(s.cfg.Server.ParseTimeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resolver := s.currentResolver()
	done := make(chan parseResult, 1)
	go func() {
		sess, err := timeline.Decode(data, timeline.WithResolver(resolver), timeline.WithLogger(s.log))
		if err != nil {
			done <- parseResult{err: err}
			return
		}
		done <- parseResult{summary: sess.Summary()}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			_ = c.Error(res.err)
			c.JSON(http.StatusUnprocessableEntity, decodeErrorBody(res.err))
			return
		}
		c.JSON(http.StatusOK, res.summary)
	case <-ctx.Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "parse deadline exceeded"})
	}
}

func decodeErrorBody(err error) gin.H {
	body := gin.H{"error": err.Error()}
	var de *timeline.DecodeError
	if errors.As(err, &de) {
		body["kind"] = de.Kind.Error()
		if de.Track >= 0 {
			body["track"] = de.Track
		}
		if de.Offset >= 0 {
			body["offset"] = de.Offset
		}
	}
	return body
}

// listInstruments godoc
// @Summary List the instrument table
// @Description Returns the program number to sound group table used to annotate timelines
// @Tags instruments
// @Produce json
// @Success 200 {object} map[string]string
// @Router /instruments [get]
func (s *Server) listInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, s.currentResolver().Table())
}

// replaceInstruments godoc
// @Summary Replace the instrument table
// @Tags instruments
// @Accept json
// @Produce json
// @Param table body map[string]string true "Program number to group"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /instruments [put]
func (s *Server) replaceInstruments(c *gin.Context) {
	var table map[int]string
	if err := c.ShouldBindJSON(&table); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resolver, err := instrument.NewResolver(table)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.resolver = resolver
	s.mu.Unlock()

	s.log.Info("instrument table replaced", zap.Int("programs", len(table)))
	c.JSON(http.StatusOK, resolver.Table())
}

// resetInstruments godoc
// @Summary Restore the configured instrument table
// @Tags instruments
// @Produce json
// @Success 200 {object} map[string]string
// @Router /instruments/reset [post]
func (s *Server) resetInstruments(c *gin.Context) {
	resolver, err := s.cfg.Resolver()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.resolver = resolver
	s.mu.Unlock()

	c.JSON(http.StatusOK, resolver.Table())
}

type playRequest struct {
	Note *int `json:"note" binding:"required"`
}

type groupRequest struct {
	Group string `json:"group" binding:"required"`
}

// playNote godoc
// @Summary Play a note
// @Description Plays the sample for a note from its assigned sound group
// @Tags notes
// @Accept json
// @Produce json
// @Param request body playRequest true "Note to play"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /notes/play [post]
func (s *Server) playNote(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"note\": <0-127>}"})
		return
	}
	if err := s.player.PlayNote(*req.Note); err != nil {
		s.fail(c, err)
		return
	}
	group, _ := s.player.NoteGroup(*req.Note)
	c.JSON(http.StatusOK, gin.H{"note": *req.Note, "group": group})
}

// getNoteGroup godoc
// @Summary Get the sound group of a note
// @Tags notes
// @Produce json
// @Param note path int true "MIDI note number"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /notes/{note}/group [get]
func (s *Server) getNoteGroup(c *gin.Context) {
	note, ok := noteParam(c)
	if !ok {
		return
	}
	group, err := s.player.NoteGroup(note)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note, "group": group})
}

// setNoteGroup godoc
// @Summary Assign a note to a sound group
// @Tags notes
// @Accept json
// @Produce json
// @Param note path int true "MIDI note number"
// @Param request body groupRequest true "Sound group"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /notes/{note}/group [put]
func (s *Server) setNoteGroup(c *gin.Context) {
	note, ok := noteParam(c)
	if !ok {
		return
	}
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"group\": <name>}"})
		return
	}
	if err := s.player.SetNoteGroup(note, req.Group); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note, "group": req.Group})
}

// listSoundGroups godoc
// @Summary List sound groups
// @Description Rescans the sounds directory
// @Tags notes
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /sound-groups [get]
func (s *Server) listSoundGroups(c *gin.Context) {
	groups, err := s.library.Groups()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups, "default": s.store.DefaultGroup()})
}

// resetMapping godoc
// @Summary Reset every note to the default group
// @Tags mappings
// @Produce json
// @Success 200 {object} map[string]string
// @Router /mapping/reset [post]
func (s *Server) resetMapping(c *gin.Context) {
	s.store.Reset()
	s.player.Purge()
	c.JSON(http.StatusOK, gin.H{"status": "reset", "group": s.store.DefaultGroup()})
}

// listMappings godoc
// @Summary List saved mappings
// @Tags mappings
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /mappings [get]
func (s *Server) listMappings(c *gin.Context) {
	names, err := s.store.List()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": names})
}

// saveMapping godoc
// @Summary Save the current mapping
// @Tags mappings
// @Produce json
// @Param name path string true "Mapping name"
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /mappings/{name} [post]
func (s *Server) saveMapping(c *gin.Context) {
	name := c.Param("name")
	if err := s.store.Save(name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "saved", "name": name})
}

// loadMapping godoc
// @Summary Load a saved mapping
// @Tags mappings
// @Produce json
// @Param name path string true "Mapping name"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /mappings/{name}/load [post]
func (s *Server) loadMapping(c *gin.Context) {
	name := c.Param("name")
	if err := s.store.Load(name); err != nil {
		s.fail(c, err)
		return
	}
	s.player.Purge()
	c.JSON(http.StatusOK, gin.H{"status": "loaded", "name": name})
}

func noteParam(c *gin.Context) (int, bool) {
	note, err := strconv.Atoi(c.Param("note"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "note must be a number"})
		return 0, false
	}
	return note, true
}

// fail maps domain errors onto status codes.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, mapping.ErrInvalidNote),
		errors.Is(err, mapping.ErrUnknownGroup),
		errors.Is(err, mapping.ErrInvalidName):
		status = http.StatusBadRequest
	case errors.Is(err, mapping.ErrNotFound),
		errors.Is(err, sound.ErrSampleNotFound),
		errors.Is(err, sound.ErrNoGroup):
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
