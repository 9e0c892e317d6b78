// ABOUTME: HTTP transport for the document server
// ABOUTME: Wires the store, edit engine and session tracker behind gin routes

package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lingtools/docserve/pkg/session"
	"github.com/lingtools/docserve/pkg/store"
)

// Server holds the HTTP handlers for the document server.
type Server struct {
	store    *store.Store
	sessions *session.Tracker
	log      zerolog.Logger
}

// New creates a server around a store and a session tracker.
func New(st *store.Store, tr *session.Tracker, log zerolog.Logger) *Server {
	return &Server{store: st, sessions: tr, log: log}
}

// Router builds the gin engine with middleware and all routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestID(), s.observe(), s.recovery())
	registerRoutes(r, s)
	return r
}

// registerRoutes mounts every endpoint of the document server.
//
// Document access:
//
//	GET  /getdoc/:namespace/:docid/:sid       - skeleton, annotations, declarations
//	GET  /getdocjson/:namespace/:docid/:sid   - raw persisted document
//	GET  /getelement/:namespace/:docid/:elementid/:sid
//
// Editing:
//
//	POST /annotate/:namespace/:docid/:sid     - apply a batch of edit statements
//	GET  /poll/:namespace/:docid/:sid         - drain pending updates
//	POST /declare/:namespace/:docid/:sid      - declare an annotation type and set
//
// History:
//
//	GET  /getdochistory/:namespace/:docid
//	POST /revert/:namespace/:docid
//
// Management:
//
//	POST /upload/:namespace/:sid
//	GET  /getnamespaces
//	GET  /getdocuments/:namespace
//	POST /makenamespace/:namespace
//	GET  /health
//	GET  /metrics
func registerRoutes(r *gin.Engine, s *Server) {
	r.GET("/getdoc/:namespace/:docid/:sid", s.getDoc)
	r.GET("/getdocjson/:namespace/:docid/:sid", s.getDocJSON)
	r.GET("/getelement/:namespace/:docid/:elementid/:sid", s.getElement)

	r.POST("/annotate/:namespace/:docid/:sid", s.annotate)
	r.GET("/poll/:namespace/:docid/:sid", s.poll)
	r.POST("/declare/:namespace/:docid/:sid", s.declare)

	r.GET("/getdochistory/:namespace/:docid", s.getDocHistory)
	r.POST("/revert/:namespace/:docid", s.revert)

	r.POST("/upload/:namespace/:sid", s.upload)
	r.GET("/getnamespaces", s.getNamespaces)
	r.GET("/getdocuments/:namespace", s.getDocuments)
	r.POST("/makenamespace/:namespace", s.makeNamespace)

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
