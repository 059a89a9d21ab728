package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	participantdomain "github.com/smallbiznis/referral/internal/participant/domain"
	"github.com/smallbiznis/referral/internal/productcontext"
)

func (s *Server) ListParticipants(c *gin.Context) {
	productID, ok := productcontext.ProductIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrProductRequired)
		return
	}

	page, err := parsePagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, info, err := s.participantSvc.List(c.Request.Context(), productID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": info})
}

func (s *Server) GetParticipantByID(c *gin.Context) {
	participant, ok := s.scopedParticipant(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": participant})
}

func (s *Server) GetParticipantLink(c *gin.Context) {
	participant, ok := s.scopedParticipant(c)
	if !ok {
		return
	}

	link, err := s.referralSvc.FindLinkByParticipant(c.Request.Context(), participant.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"slug": link.Slug,
		"url":  s.cfg.LinkBaseURL + "/r/" + link.Slug,
	}})
}

func (s *Server) ListParticipantReferrals(c *gin.Context) {
	participant, ok := s.scopedParticipant(c)
	if !ok {
		return
	}

	page, err := parsePagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, info, err := s.referralSvc.ListByReferrer(c.Request.Context(), participant.ID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": info})
}

func (s *Server) ListParticipantRewards(c *gin.Context) {
	participant, ok := s.scopedParticipant(c)
	if !ok {
		return
	}

	page, err := parsePagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, info, err := s.rewardSvc.ListByParticipant(c.Request.Context(), participant.ProductID, participant.ID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": info})
}

func (s *Server) ListParticipantEvents(c *gin.Context) {
	participant, ok := s.scopedParticipant(c)
	if !ok {
		return
	}

	page, err := parsePagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, info, err := s.eventSvc.ListByParticipant(c.Request.Context(), participant.ProductID, participant.ID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": info})
}

// scopedParticipant loads :id within the authenticated product and aborts the
// request when it cannot.
func (s *Server) scopedParticipant(c *gin.Context) (*participantdomain.Participant, bool) {
	productID, ok := productcontext.ProductIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrProductRequired)
		return nil, false
	}

	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}

	participant, err := s.participantSvc.Get(c.Request.Context(), productID, id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	return participant, true
}
