package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/containeer/internal/common"
	"github.com/dmitrijs2005/containeer/internal/server/services"
	"github.com/gin-gonic/gin"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
	IsAdmin  bool   `json:"is_admin"`
}

func newTokenResponse(p *services.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  p.AccessToken,
		TokenType:    common.BearerScheme,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    int64(p.ExpiresIn.Seconds()),
	}
}

func (s *HTTPServer) welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to Containeer API"})
}

// login accepts the Google ID token as ?token= or as {"token": "..."}.
func (s *HTTPServer) login(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		var body struct {
			Token string `json:"token"`
		}
		if c.Request.ContentLength != 0 {
			_ = c.ShouldBindJSON(&body)
		}
		token = body.Token
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	pair, err := s.users.Login(c.Request.Context(), token)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

func (s *HTTPServer) refresh(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}

	pair, err := s.users.Refresh(c.Request.Context(), body.RefreshToken)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

func (s *HTTPServer) logout(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&body)
	}

	if err := s.users.Logout(c.Request.Context(), principal(c), body.RefreshToken); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

func (s *HTTPServer) upload(c *gin.Context) {
	if s.options.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.options.MaxUploadBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	// Reject before reading the payload.
	if !common.HasAllowedExtension(fh.Filename) {
		s.abort(c, common.ErrUnsupportedMediaType)
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.abort(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.abort(c, err)
		return
	}

	file, err := s.files.Upload(c.Request.Context(), principal(c).User, fh.Filename, data)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": file.ID, "filename": file.Filename})
}

func (s *HTTPServer) getFile(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}
	url, err := s.files.Grant(c.Request.Context(), principal(c).User, id)
	if err != nil {
		s.abort(c, err, publicMessages{
			common.ErrorNotFound: "File not found",
			common.ErrForbidden:  "Not authorized to access this file",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *HTTPServer) deleteFile(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}
	if err := s.files.Delete(c.Request.Context(), principal(c).User, id); err != nil {
		s.abort(c, err, publicMessages{
			common.ErrorNotFound: "File not found",
			common.ErrForbidden:  "Not authorized to delete this file",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

func (s *HTTPServer) listUsers(c *gin.Context) {
	users, err := s.users.ListUsers(c.Request.Context(), principal(c).User)
	if err != nil {
		s.abort(c, err, publicMessages{common.ErrForbidden: "The user doesn't have enough privileges"})
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{ID: u.ID, Email: u.Email, IsActive: u.IsActive, IsAdmin: u.IsAdmin})
	}
	c.JSON(http.StatusOK, out)
}

func fileID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return 0, false
	}
	return id, true
}
