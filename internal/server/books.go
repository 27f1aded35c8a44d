package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"bookbazaar/pkg/domain"
)

type bookRequest struct {
	Title    string           `json:"title"`
	Price    *decimal.Decimal `json:"price"`
	Stock    *int             `json:"stock"`
	ImageURL string           `json:"image_url"`
}

func (req bookRequest) input() domain.BookInput {
	return domain.BookInput{
		Title:    req.Title,
		Price:    req.Price,
		Stock:    req.Stock,
		ImageURL: req.ImageURL,
	}
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, sellerID int64) {
	switch r.Method {
	case http.MethodGet:
		books, err := s.app.ListBooks(r.Context(), sellerID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"books": newBookViews(books)})
	case http.MethodPost:
		var req bookRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			invalidJSON(w)
			return
		}
		book, err := s.app.CreateBook(r.Context(), sellerID, req.input())
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Book added successfully",
			"book":    newBookView(book),
		})
	default:
		methodNotAllowed(w)
	}
}

// /books/{id}
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, sellerID int64) {
	if r.Method != http.MethodPut && r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	bookID, ok := parseBookID(w, r)
	if !ok {
		return
	}
	if r.Method == http.MethodDelete {
		if err := s.app.DeleteBook(r.Context(), sellerID, bookID); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Book deleted successfully"})
		return
	}

	var req bookRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		invalidJSON(w)
		return
	}
	book, err := s.app.UpdateBook(r.Context(), sellerID, bookID, req.input())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Book updated successfully",
		"book":    newBookView(book),
	})
}

// /books/{id}/cover
func (s *Server) handleBookCover(w http.ResponseWriter, r *http.Request, sellerID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	bookID, ok := parseBookID(w, r)
	if !ok {
		return
	}
	// Leave headroom for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxCoverBytes+64<<10)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "cover image too large")
			return
		}
		writeError(w, http.StatusBadRequest, codeValidation, "invalid form data")
		return
	}
	file, header, err := r.FormFile("cover")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "cover is required (field: cover)")
		return
	}
	defer file.Close()
	if header.Size > s.maxCoverBytes {
		writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "cover image too large")
		return
	}
	book, err := s.app.UploadCover(r.Context(), sellerID, bookID, header.Filename, file, header.Size)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Cover uploaded successfully",
		"book":    newBookView(book),
	})
}

func parseBookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidBookID, "Invalid book ID")
		return 0, false
	}
	return id, true
}
