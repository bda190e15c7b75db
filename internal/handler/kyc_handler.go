package handler

import (
	"fmt"
	"log"
	"net/http"

	"partnerly/internal/domain"
	"partnerly/internal/middleware"
	"partnerly/internal/repository"
	"partnerly/pkg/cloudinary"

	"github.com/gin-gonic/gin"
)

// KYCHandler accepts partner identity documents; an admin reviews them and
// sets the KYC status that gates payouts.
type KYCHandler struct {
	partnerRepo *repository.PartnerRepository
	cloud       cloudinary.Client
}

func NewKYCHandler(partnerRepo *repository.PartnerRepository, cloud cloudinary.Client) *KYCHandler {
	return &KYCHandler{partnerRepo: partnerRepo, cloud: cloud}
}

// UploadDocument stores the KYC document and resets the partner to PENDING
// review.
func (h *KYCHandler) UploadDocument(c *gin.Context) {
	partnerID := middleware.GetPartnerID(c)
	fileHeader, err := c.FormFile("document")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document file required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read document"})
		return
	}
	defer file.Close()
	url, err := h.cloud.UploadDocument(c.Request.Context(), file, "kyc", fmt.Sprintf("partner_%d", partnerID))
	if err != nil {
		log.Printf("[kyc] upload for partner %d: %v", partnerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	if err := h.partnerRepo.SetKYC(partnerID, domain.KYCPending, url); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"kyc_status": domain.KYCPending, "document_url": url})
}
