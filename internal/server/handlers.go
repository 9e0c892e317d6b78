// ABOUTME: HTTP handlers implementing the annotation editor wire contract
// ABOUTME: Edits respond with rendered elements, polls drain session queues

package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lingtools/docserve/internal/metrics"
	"github.com/lingtools/docserve/pkg/document"
	"github.com/lingtools/docserve/pkg/engine"
	"github.com/lingtools/docserve/pkg/query"
	"github.com/lingtools/docserve/pkg/render"
	"github.com/lingtools/docserve/pkg/store"
)

func reqKey(c *gin.Context) document.Key {
	return store.Normalize(document.Key{
		Namespace: c.Param("namespace"),
		ID:        c.Param("docid"),
	})
}

// annotatorFor extracts the user name from a session id of the form
// "user/sessionid".
func annotatorFor(sid string) string {
	user, _, _ := strings.Cut(sid, "/")
	return user
}

// elementPayload renders the given elements for the editing interface.
// Ids that no longer resolve are silently skipped; deletions are conveyed
// through the skeleton of the surviving ancestor.
func elementPayload(doc *document.Document, ids []string) []gin.H {
	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		el, ok := doc.ElementByID(id)
		if !ok {
			continue
		}
		out = append(out, gin.H{
			"elementid":   id,
			"html":        render.HTML(el),
			"annotations": render.Annotations(el),
		})
	}
	return out
}

func (s *Server) getDoc(c *gin.Context) {
	key, sid := reqKey(c), c.Param("sid")
	s.sessions.Touch(key, sid)
	var resp gin.H
	err := s.store.View(key, func(doc *document.Document) error {
		resp = gin.H{
			"html":         render.HTML(doc.Root),
			"annotations":  render.Annotations(doc.Root),
			"declarations": render.Declarations(doc),
			"sessions":     s.sessions.Sessions(key),
		}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getDocJSON(c *gin.Context) {
	key := reqKey(c)
	var data []byte
	err := s.store.View(key, func(doc *document.Document) error {
		var merr error
		data, merr = document.Marshal(doc)
		return merr
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) getElement(c *gin.Context) {
	key, elementID := reqKey(c), c.Param("elementid")
	s.sessions.Touch(key, c.Param("sid"))
	var resp gin.H
	err := s.store.View(key, func(doc *document.Document) error {
		el, ok := doc.ElementByID(elementID)
		if !ok {
			return nil
		}
		resp = gin.H{
			"elementid":   elementID,
			"html":        render.HTML(el),
			"annotations": render.Annotations(el),
		}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such element: " + elementID})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// annotate parses a batch of edit statements, applies it to every selected
// document, and answers with the re-rendered affected elements of the
// document named in the URL. Other editor sessions on the same documents
// get the affected ids queued for their next poll.
func (s *Server) annotate(c *gin.Context) {
	key, sid := reqKey(c), c.Param("sid")
	s.sessions.Touch(key, sid)

	req, err := readAnnotateRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	annotatorType := document.AnnotatorType(req.AnnotatorType)
	switch annotatorType {
	case "", document.AnnotatorManual, document.AnnotatorAuto:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid annotator type: " + req.AnnotatorType})
		return
	}
	batch := query.NewBatch()
	for _, stmt := range req.Queries {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := batch.Parse(stmt); err != nil {
			metrics.QueryParseFailures.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if len(batch.Keys()) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no edit statements submitted"})
		return
	}
	for _, k := range batch.Keys() {
		if store.Normalize(k).Namespace != key.Namespace {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "attempt to edit a document outside of the current namespace",
			})
			return
		}
	}

	annotator := req.Annotator
	if annotator == "" {
		annotator = annotatorFor(sid)
	}
	resp := gin.H{}
	for _, k := range batch.Keys() {
		nk := store.Normalize(k)
		edits := batch.Edits(k)
		var affected []string
		var logMsg string
		var elements []gin.H
		err := s.store.Update(nk, func(doc *document.Document) (string, error) {
			res, aerr := engine.Apply(doc, edits, annotator, annotatorType)
			if res != nil {
				affected = res.AffectedIDs
				logMsg = res.Log
			}
			if aerr != nil {
				return "", aerr
			}
			metrics.EditsApplied.Add(float64(len(edits)))
			elements = elementPayload(doc, affected)
			return logMsg + " (" + annotator + ")", nil
		})
		if err != nil {
			if errors.Is(err, store.ErrNoSuchDocument) {
				s.fail(c, err)
				return
			}
			// edit failures are part of the editing conversation, not
			// transport errors; the interface shows them inline
			c.JSON(http.StatusOK, gin.H{"error": err.Error()})
			return
		}
		s.sessions.Broadcast(nk, sid, affected)
		if nk == key {
			resp = gin.H{
				"returnelementids": affected,
				"log":              logMsg,
				"elements":         elements,
				"sessions":         s.sessions.Sessions(key),
			}
		}
	}
	s.store.Sweep()
	c.JSON(http.StatusOK, resp)
}

type annotateRequest struct {
	Queries       []string `json:"queries"`
	Annotator     string   `json:"annotator"`
	AnnotatorType string   `json:"annotatortype"`
}

// readAnnotateRequest accepts either a raw text body with one statement
// per line or a JSON body of the form {"queries": [...], "annotator": ...,
// "annotatortype": ...}.
func readAnnotateRequest(c *gin.Context) (*annotateRequest, error) {
	var req annotateRequest
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	req.Queries = strings.Split(string(data), "\n")
	return &req, nil
}

// poll drains the pending updates for a session. The response is an empty
// object when nothing changed, so the editor can poll cheaply.
func (s *Server) poll(c *gin.Context) {
	key, sid := reqKey(c), c.Param("sid")
	metrics.PollsTotal.Inc()
	for _, orphan := range s.sessions.Sweep() {
		if err := s.store.Unload(orphan, true); err != nil {
			s.log.Error().Err(err).Str("docid", orphan.ID).Msg("unload of orphaned document failed")
		}
	}
	s.store.Sweep()
	ids := s.sessions.Poll(key, sid)
	if len(ids) == 0 {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	var elements []gin.H
	err := s.store.View(key, func(doc *document.Document) error {
		elements = elementPayload(doc, ids)
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"elements": elements,
		"sessions": s.sessions.Sessions(key),
	})
}

func (s *Server) declare(c *gin.Context) {
	key, sid := reqKey(c), c.Param("sid")
	typ := c.Query("annotationtype")
	set := c.Query("set")
	if !document.KnownType(typ) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no such annotation type: " + typ})
		return
	}
	if set == "" {
		set = document.UndefinedSet
	}
	s.sessions.Touch(key, sid)
	var decls []render.View
	err := s.store.Update(key, func(doc *document.Document) (string, error) {
		doc.Declare(typ, set)
		decls = render.Declarations(doc)
		return "declared " + typ + " (" + set + ")", nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"declarations": decls})
}

func (s *Server) getDocHistory(c *gin.Context) {
	key := reqKey(c)
	commits, err := s.store.History(key)
	if err != nil {
		s.fail(c, err)
		return
	}
	history := make([]gin.H, 0, len(commits))
	for _, commit := range commits {
		history = append(history, gin.H{
			"commit":  commit.Hash,
			"date":    commit.Date,
			"message": commit.Message,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (s *Server) revert(c *gin.Context) {
	key := reqKey(c)
	hash := c.Query("commithash")
	if hash == "" {
		hash = c.PostForm("commithash")
	}
	if hash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no commit hash specified"})
		return
	}
	if err := s.store.Revert(key, hash); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// upload installs a document under a namespace. The body is the document
// in its persisted form; the id inside the document names it, shifted to a
// free name when taken.
func (s *Server) upload(c *gin.Context) {
	namespace, sid := c.Param("namespace"), c.Param("sid")
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := document.Unmarshal(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key, err := s.store.Put(document.Key{Namespace: namespace, ID: doc.ID}, doc)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.sessions.Touch(key, sid)
	s.log.Info().Str("namespace", key.Namespace).Str("docid", key.ID).Msg("document uploaded")
	c.JSON(http.StatusOK, gin.H{"namespace": key.Namespace, "docid": key.ID})
}

func (s *Server) getNamespaces(c *gin.Context) {
	namespaces, err := s.store.Namespaces()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"namespaces": namespaces})
}

func (s *Server) getDocuments(c *gin.Context) {
	docs, err := s.store.Documents(c.Param("namespace"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) makeNamespace(c *gin.Context) {
	if err := s.store.MakeNamespace(c.Param("namespace")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail maps an error to a response: missing documents are 404, everything
// else is a 500 with the message logged server side.
func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNoSuchDocument) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
