package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/storage"
	"github.com/your-org/rollcall/pkg/dto"
)

type StudentHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
	// EmbedFn extracts a face descriptor from image bytes.
	// Set after the recognition pipeline is initialized.
	EmbedFn func(imageData []byte) ([]float32, float32, error)
}

func NewStudentHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *StudentHandler {
	return &StudentHandler{db: db, minio: minio}
}

func (h *StudentHandler) CreateGroup(c *gin.Context) {
	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.db.CreateGroup(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.GroupResponse{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		CreatedAt:   group.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (h *StudentHandler) ListGroups(c *gin.Context) {
	groups, err := h.db.ListGroups(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.GroupResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, dto.GroupResponse{
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
			CreatedAt:   g.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"groups": resp, "total": len(resp)})
}

func (h *StudentHandler) Create(c *gin.Context) {
	var req dto.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Verify group exists
	group, err := h.db.GetGroup(c.Request.Context(), req.GroupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if group == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}

	student, err := h.db.CreateStudent(c.Request.Context(), req.GroupID, req.Name, req.Metadata)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.StudentResponse{
		ID:              student.ID,
		GroupID:         student.GroupID,
		Name:            student.Name,
		Metadata:        student.Metadata,
		DescriptorCount: 0,
		CreatedAt:       student.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (h *StudentHandler) List(c *gin.Context) {
	var groupID *uuid.UUID
	if groupStr := c.Query("group_id"); groupStr != "" {
		id, err := uuid.Parse(groupStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group_id"})
			return
		}
		groupID = &id
	}

	students, err := h.db.ListStudents(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.StudentResponse, 0, len(students))
	for _, st := range students {
		count, _ := h.db.CountDescriptors(c.Request.Context(), st.ID)
		resp = append(resp, dto.StudentResponse{
			ID:              st.ID,
			GroupID:         st.GroupID,
			Name:            st.Name,
			Metadata:        st.Metadata,
			DescriptorCount: count,
			CreatedAt:       st.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"students": resp, "total": len(resp)})
}

func (h *StudentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}

	student, err := h.db.GetStudent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if student == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}

	count, _ := h.db.CountDescriptors(c.Request.Context(), id)

	c.JSON(http.StatusOK, dto.StudentResponse{
		ID:              student.ID,
		GroupID:         student.GroupID,
		Name:            student.Name,
		Metadata:        student.Metadata,
		DescriptorCount: count,
		CreatedAt:       student.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// Delete deregisters a student. Their descriptors leave the gallery on the
// workers' next refresh.
func (h *StudentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}

	if err := h.db.DeleteStudent(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Enroll accepts a multipart photo upload, extracts a descriptor, and adds
// it to the student's gallery entries.
func (h *StudentHandler) Enroll(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}

	student, err := h.db.GetStudent(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if student == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	if h.EmbedFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recognition pipeline not initialized"})
		return
	}

	embedding, quality, err := h.EmbedFn(imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract face: " + err.Error()})
		return
	}

	// Keep the enrollment photo for audit
	sourceKey := "enrollment/" + studentID.String() + "/" + uuid.New().String() + "_" + header.Filename
	if err := h.minio.PutObject(c.Request.Context(), sourceKey, imageData, header.Header.Get("Content-Type")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store image failed"})
		return
	}

	fd, err := h.db.AddDescriptor(c.Request.Context(), studentID, embedding, quality, sourceKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.DescriptorResponse{
		ID:        fd.ID,
		StudentID: fd.StudentID,
		Quality:   fd.Quality,
		SourceKey: fd.SourceKey,
		CreatedAt: fd.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (h *StudentHandler) ListDescriptors(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}

	descriptors, err := h.db.ListDescriptors(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.DescriptorResponse, 0, len(descriptors))
	for _, d := range descriptors {
		resp = append(resp, dto.DescriptorResponse{
			ID:        d.ID,
			StudentID: d.StudentID,
			Quality:   d.Quality,
			SourceKey: d.SourceKey,
			CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"descriptors": resp, "total": len(resp)})
}

func (h *StudentHandler) DeleteDescriptor(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}
	descriptorID, err := uuid.Parse(c.Param("descriptorId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid descriptor id"})
		return
	}

	if err := h.db.DeleteDescriptor(c.Request.Context(), studentID, descriptorID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Verify identifies the student on an uploaded photo without recording
// attendance. Useful for checking an enrollment from the admin UI.
func (h *StudentHandler) Verify(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	if h.EmbedFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recognition pipeline not initialized"})
		return
	}

	embedding, _, err := h.EmbedFn(imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract face: " + err.Error()})
		return
	}

	var groupID *uuid.UUID
	if groupStr := c.PostForm("group_id"); groupStr != "" {
		if id, err := uuid.Parse(groupStr); err == nil {
			groupID = &id
		}
	}

	threshold := 0.6
	limit := 5

	matches, err := h.db.SearchDescriptors(c.Request.Context(), embedding, groupID, threshold, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results := make([]dto.VerifyResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, dto.VerifyResult{
			StudentID: m.StudentID,
			Name:      m.Name,
			Score:     m.Score,
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}
