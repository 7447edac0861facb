package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	obsmiddleware "github.com/smallbiznis/egsbridge/internal/observability/logger"
	"github.com/smallbiznis/egsbridge/internal/relay"
)

// AssembleInvoice builds the tax document for an upstream relay envelope.
// The document is returned as JSON, or as UBL XML with ?format=xml.
func (s *Server) AssembleInvoice(c *gin.Context) {
	var env relay.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req, err := relay.Bind(s.schema, env)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	bindUnit(c, req.Certificate.Key())

	doc, err := s.assembler.Assemble(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if strings.EqualFold(c.Query("format"), "xml") {
		raw, err := doc.MarshalDocument()
		if err != nil {
			obsmiddleware.WithContext(c.Request.Context(), s.log).Error("serialize invoice failed", zap.String("uuid", req.UUID), zap.Error(err))
			AbortWithError(c, ErrInternal)
			return
		}
		c.Data(http.StatusOK, "application/xml; charset=utf-8", raw)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": doc})
}
