package documents

import (
	"fmt"
	"strings"
	"time"

	"workforce-backend/internal/extract"
)

// DocumentType classifies an uploaded document.
type DocumentType string

const (
	TypeResume      DocumentType = "resume"
	TypeContract    DocumentType = "contract"
	TypeID          DocumentType = "id"
	TypeCertificate DocumentType = "certificate"
	TypePayslip     DocumentType = "payslip"
	TypeOther       DocumentType = "other"
)

var documentTypes = map[DocumentType]struct{}{
	TypeResume:      {},
	TypeContract:    {},
	TypeID:          {},
	TypeCertificate: {},
	TypePayslip:     {},
	TypeOther:       {},
}

// ParseDocumentType accepts a case-insensitive type name. Blank means other.
func ParseDocumentType(raw string) (DocumentType, error) {
	clean := DocumentType(strings.ToLower(strings.TrimSpace(raw)))
	if clean == "" {
		return TypeOther, nil
	}
	if _, ok := documentTypes[clean]; !ok {
		return "", fmt.Errorf("%w: document type %q", ErrInvalidInput, raw)
	}
	return clean, nil
}

// Document is an uploaded file owned by one user of one company.
type Document struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	CompanyID       string           `json:"companyId"`
	FileName        string           `json:"fileName"`
	OriginalName    string           `json:"originalName"`
	MimeType        string           `json:"mimeType"`
	SizeBytes       int64            `json:"size"`
	DocumentType    DocumentType     `json:"documentType"`
	StorageProvider string           `json:"storageProvider"`
	StorageKey      string           `json:"-"`
	Metadata        extract.Metadata `json:"metadata"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Scope selects the documents a caller may see.
type Scope struct {
	UserID    string
	CompanyID string
	// Company widens the scope to every document of CompanyID.
	Company bool
}

// Allows reports whether doc falls inside the scope.
func (s Scope) Allows(doc Document) bool {
	if s.Company {
		return s.CompanyID != "" && doc.CompanyID == s.CompanyID
	}
	return s.UserID != "" && doc.UserID == s.UserID
}

// ListQuery filters and pages a document listing. A blank Query matches everything.
type ListQuery struct {
	Scope  Scope
	Query  string
	Limit  int
	Offset int
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

func (q ListQuery) normalized() ListQuery {
	q.Query = strings.TrimSpace(q.Query)
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
