package catalog

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/5w1tchy/library-api/internal/validate"
)

var (
	ErrNotFound = errors.New("catalog: not found")
	ErrConflict = errors.New("catalog: conflict")
)

// Date is a calendar day. It scans from a postgres date and encodes as
// "YYYY-MM-DD".
type Date struct{ time.Time }

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(validate.DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	t, err := time.ParseInLocation(validate.DateLayout, s, time.UTC)
	if err != nil {
		return err
	}
	*d = Date{t}
	return nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	case []byte:
		return d.UnmarshalJSON(v)
	case nil:
		*d = Date{}
	default:
		return fmt.Errorf("catalog: cannot scan %T into Date", src)
	}
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Format(validate.DateLayout), nil
}

type Book struct {
	ID              int64     `db:"id" json:"id"`
	Author          string    `db:"author" json:"author"`
	Title           string    `db:"title" json:"title"`
	Subtitle        string    `db:"subtitle" json:"subtitle"`
	PublicationDate Date      `db:"publication_date" json:"publication_date"`
	CoverKey        *string   `db:"cover_key" json:"cover_key,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type NewBook struct {
	Author          string
	Title           string
	Subtitle        string
	PublicationDate Date
}

type Library struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

type Holder struct {
	Username string `json:"username"`
}

// Copy is one physical copy of a book. User and BorrowDate are both set
// while the copy is borrowed and both nil while it is available.
type Copy struct {
	ID         int64      `db:"id" json:"id"`
	BookID     int64      `db:"book_id" json:"book"`
	LibraryID  int64      `db:"library_id" json:"library"`
	User       *Holder    `db:"-" json:"user"`
	BorrowDate *time.Time `db:"borrow_date" json:"borrow_date"`

	// scan-only
	UserID   *string `db:"user_id" json:"-"`
	Username *string `db:"username" json:"-"`
}

// Resolve fills User from the scanned username column.
func (c *Copy) Resolve() {
	c.User = nil
	if c.UserID != nil {
		h := Holder{}
		if c.Username != nil {
			h.Username = *c.Username
		}
		c.User = &h
	}
}

func (c Copy) Borrowed() bool { return c.UserID != nil || c.User != nil }

func ResolveAll(cs []Copy) {
	for i := range cs {
		cs[i].Resolve()
	}
}

type BookWithCopies struct {
	Book
	Copies []Copy `json:"copies"`
}

type BooksPage struct {
	Count int              `json:"count"`
	Books []BookWithCopies `json:"books"`
}
