package ledgerdev

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

type recordHandlers struct {
	s    *Server
	kind core.Kind
}

func (h recordHandlers) list(c *gin.Context) {
	records, err := h.s.repo.ListRecords(c.Request.Context(), userID(c), h.kind)
	if err != nil {
		h.fail(c, log.OpList, "", err)
		return
	}
	if records == nil {
		records = []core.Record{}
	}
	c.JSON(http.StatusOK, gin.H{h.kind.Collection: records})
}

// bind decodes a draft of h.kind and coerces it. A validation failure has
// already been answered when ok is false.
func (h recordHandlers) bind(c *gin.Context) (core.Draft, bool) {
	d := core.Draft{Kind: h.kind}
	if err := c.ShouldBindJSON(&d); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return core.Draft{}, false
	}
	d.Kind = h.kind
	if err := d.Validate(); err != nil {
		abort(c, http.StatusBadRequest, core.Capitalize(err.Error()))
		return core.Draft{}, false
	}
	return d, true
}

func (h recordHandlers) create(c *gin.Context) {
	d, ok := h.bind(c)
	if !ok {
		return
	}
	rec, err := d.Normalize(h.s.now()).Record()
	if err != nil {
		abort(c, http.StatusBadRequest, core.Capitalize(err.Error()))
		return
	}
	created, err := h.s.repo.CreateRecord(c.Request.Context(), userID(c), rec)
	if err != nil {
		h.fail(c, log.OpCreate, "", err)
		return
	}
	h.s.publish(c.Request.Context(), log.OpCreate, h.kind, created.ID, userID(c))
	c.JSON(http.StatusCreated, created)
}

// update replaces the record. A blank date keeps the stored one.
func (h recordHandlers) update(c *gin.Context) {
	id := c.Param("id")
	d, ok := h.bind(c)
	if !ok {
		return
	}
	existing, err := h.find(c, id)
	if err != nil {
		h.fail(c, log.OpUpdate, id, err)
		return
	}
	if d.Date == "" && !existing.Date.IsEmpty() {
		d.Date = existing.Date.UTC().Format(time.RFC3339)
	}
	rec, err := d.Normalize(h.s.now()).Record()
	if err != nil {
		abort(c, http.StatusBadRequest, core.Capitalize(err.Error()))
		return
	}
	rec.ID = id
	updated, err := h.s.repo.UpdateRecord(c.Request.Context(), userID(c), rec)
	if err != nil {
		h.fail(c, log.OpUpdate, id, err)
		return
	}
	h.s.publish(c.Request.Context(), log.OpUpdate, h.kind, id, userID(c))
	c.JSON(http.StatusOK, updated)
}

func (h recordHandlers) remove(c *gin.Context) {
	id := c.Param("id")
	if err := h.s.repo.DeleteRecord(c.Request.Context(), userID(c), h.kind, id); err != nil {
		h.fail(c, log.OpDelete, id, err)
		return
	}
	h.s.publish(c.Request.Context(), log.OpDelete, h.kind, id, userID(c))
	c.Status(http.StatusNoContent)
}

func (h recordHandlers) find(c *gin.Context, id string) (core.Record, error) {
	records, err := h.s.repo.ListRecords(c.Request.Context(), userID(c), h.kind)
	if err != nil {
		return core.Record{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return core.Record{}, storage.ErrNotFound
}

func (h recordHandlers) fail(c *gin.Context, op, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		abort(c, http.StatusNotFound, "Record not found")
		return
	}
	h.s.logger.ErrorContext(c.Request.Context(), "Record operation failed",
		log.NewFields().
			WithOperation(op).
			WithRecord(h.kind.Name, id, 0).
			WithError(err, log.ErrorTypeDatabase).
			ToSlice()...)
	abort(c, http.StatusInternalServerError, "internal error")
}
