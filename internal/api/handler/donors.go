package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bloodlink/backend/internal/apperr"
	"bloodlink/backend/internal/donor"
	"bloodlink/backend/internal/models"
)

type listDonorsQuery struct {
	BloodGroup string `form:"bloodGroup"`
	District   string `form:"district"`
	Available  string `form:"available"`
	Q          string `form:"q"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
	Sort       string `form:"sort"`
}

func (q listDonorsQuery) filter() models.DonorFilter {
	return models.DonorFilter{
		BloodGroup: q.BloodGroup,
		District:   q.District,
		Available:  parseBool(q.Available),
		Query:      q.Q,
		Page:       q.Page,
		Limit:      q.Limit,
		Sort:       q.Sort,
	}
}

// parseBool accepts the loose spellings browsers and forms send. Empty means
// no filter.
func parseBool(v string) *bool {
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		b = v == "yes"
	}
	return &b
}

func (h *Handler) ListDonors(c *gin.Context) {
	var q listDonorsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, apperr.InvalidArgument.New("page and limit must be numbers"))
		return
	}

	page, err := h.Donors.List(c.Request.Context(), q.filter())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"donors":  page.Donors,
		"meta":    gin.H{"total": page.Total, "page": page.Page, "limit": page.Limit},
	})
}

func (h *Handler) GetDonor(c *gin.Context) {
	d, err := h.Donors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "donor": d})
}

// CreateDonor is open to guests; a signed-in caller is linked to the entry.
func (h *Handler) CreateDonor(c *gin.Context) {
	var in donor.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, apperr.InvalidArgument.New("malformed request body"))
		return
	}
	if !isAdmin(c) {
		in.Verified = nil
	}

	d, err := h.Donors.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "donor": d})
}

func (h *Handler) UpdateDonor(c *gin.Context) {
	var in donor.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, apperr.InvalidArgument.New("malformed request body"))
		return
	}

	d, err := h.Donors.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "donor": d})
}

func (h *Handler) ToggleAvailability(c *gin.Context) {
	d, err := h.Donors.ToggleAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "donor": d})
}

func (h *Handler) DeleteDonor(c *gin.Context) {
	if err := h.Donors.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Donor removed"})
}
