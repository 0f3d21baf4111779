package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CristhianJ12/NewsApp/internal/store"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// streamNews pushes a "snapshot" server-sent event with the whole query
// result on connect and after every store mutation.
func (s *Server) streamNews(c *gin.Context) {
	q := store.AllQuery()
	switch name := c.Query("category"); {
	case c.Query("saved") == "true":
		q = store.SavedQuery()
	case name != "":
		cat, err := models.ParseCategory(name)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		q = store.CategoryQuery(cat)
	}

	snapshots, err := s.deps.Store.Subscribe(c.Request.Context(), q)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "failed to subscribe: "+err.Error())
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		docs, ok := <-snapshots
		if !ok {
			return false
		}
		c.SSEvent("snapshot", nonNil(docs))
		return true
	})
}
