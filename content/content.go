// Package content implements the portfolio and storefront data model:
// projects, products, orders, and site settings. All mutations here are
// simple validated writes; callers are responsible for putting them behind
// the session gate.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/nkomarek/atelier/auth"
	"github.com/nkomarek/atelier/internal/util"
	"github.com/nkomarek/atelier/storage"
)

const (
	kindProject = "PROJECT"
	kindProduct = "PRODUCT"
	kindOrder   = "ORDER"
)

// ErrInvalid is returned for validation failures on caller-supplied data.
var ErrInvalid = errors.New("invalid input")

// Service provides validated CRUD over the content tables.
type Service struct {
	store storage.Store
	now   func() time.Time
}

// NewService creates a content service over the given store.
func NewService(store storage.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Slugify normalizes a title into a URL slug: NFKD decomposition, combining
// marks and non-alphanumerics dropped, runs collapsed into single hyphens.
func Slugify(title string) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range util.Normalize(strings.ToLower(title)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastHyphen = false
		case unicode.IsMark(r):
			// Dropped: the base letter already made it through.
		default:
			if !lastHyphen {
				sb.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

func (s *Service) putJSON(kind, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.store.PutRecord(kind, id, data)
}

// --- Projects ---

// CreateProject validates and stores a new project. An empty slug is
// derived from the title.
func (s *Service) CreateProject(p Project) (Project, error) {
	if strings.TrimSpace(p.Title) == "" {
		return Project{}, fmt.Errorf("%w: project title is required", ErrInvalid)
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	p.ID = uuid.NewString()
	p.CreatedAt = s.now().UTC()
	p.UpdatedAt = p.CreatedAt
	if err := s.putJSON(kindProject, p.ID, p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// UpdateProject overwrites an existing project, preserving identity and
// creation time.
func (s *Service) UpdateProject(id string, p Project) (Project, error) {
	existing, err := s.GetProject(id)
	if err != nil {
		return Project{}, err
	}
	if strings.TrimSpace(p.Title) == "" {
		return Project{}, fmt.Errorf("%w: project title is required", ErrInvalid)
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()
	if err := s.putJSON(kindProject, p.ID, p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// DeleteProject removes a project by id.
func (s *Service) DeleteProject(id string) error {
	return s.store.DeleteRecord(kindProject, id)
}

// GetProject returns a project by id.
func (s *Service) GetProject(id string) (Project, error) {
	data, err := s.store.GetRecord(kindProject, id)
	if err != nil {
		return Project{}, err
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// GetProjectBySlug returns a project by its public slug.
func (s *Service) GetProjectBySlug(slug string) (Project, error) {
	projects, err := s.ListProjects()
	if err != nil {
		return Project{}, err
	}
	for _, p := range projects {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("project %q: %w", slug, storage.ErrNotFound)
}

// ListProjects returns all projects ordered by position, then creation time.
func (s *Service) ListProjects() ([]Project, error) {
	records, err := s.store.ListRecords(kindProject)
	if err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(records))
	for _, data := range records {
		var p Project
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		projects = append(projects, p)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].Position != projects[j].Position {
			return projects[i].Position < projects[j].Position
		}
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})
	return projects, nil
}

// --- Products ---

// CreateProduct validates and stores a new product.
func (s *Service) CreateProduct(p Product) (Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Product{}, fmt.Errorf("%w: product name is required", ErrInvalid)
	}
	if p.PriceCents < 0 {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrInvalid)
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	p.ID = uuid.NewString()
	p.CreatedAt = s.now().UTC()
	p.UpdatedAt = p.CreatedAt
	if err := s.putJSON(kindProduct, p.ID, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// UpdateProduct overwrites an existing product.
func (s *Service) UpdateProduct(id string, p Product) (Product, error) {
	existing, err := s.GetProduct(id)
	if err != nil {
		return Product{}, err
	}
	if strings.TrimSpace(p.Name) == "" {
		return Product{}, fmt.Errorf("%w: product name is required", ErrInvalid)
	}
	if p.PriceCents < 0 {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrInvalid)
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if p.Currency == "" {
		p.Currency = existing.Currency
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()
	if err := s.putJSON(kindProduct, p.ID, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// DeleteProduct removes a product by id.
func (s *Service) DeleteProduct(id string) error {
	return s.store.DeleteRecord(kindProduct, id)
}

// GetProduct returns a product by id.
func (s *Service) GetProduct(id string) (Product, error) {
	data, err := s.store.GetRecord(kindProduct, id)
	if err != nil {
		return Product{}, err
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// ListProducts returns all products, newest first.
func (s *Service) ListProducts() ([]Product, error) {
	records, err := s.store.ListRecords(kindProduct)
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(records))
	for _, data := range records {
		var p Product
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		products = append(products, p)
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

// --- Orders ---

// CreateOrder records a buyer's order for an active product. This is the
// one public mutation in the system and carries no session.
func (s *Service) CreateOrder(productID, email string) (Order, error) {
	if productID == "" || strings.TrimSpace(email) == "" {
		return Order{}, fmt.Errorf("%w: product and email are required", ErrInvalid)
	}
	if !strings.Contains(email, "@") {
		return Order{}, fmt.Errorf("%w: malformed email address", ErrInvalid)
	}
	product, err := s.GetProduct(productID)
	if err != nil {
		return Order{}, err
	}
	if !product.Active {
		return Order{}, fmt.Errorf("%w: product is not available", ErrInvalid)
	}
	order := Order{
		ID:        uuid.NewString(),
		ProductID: product.ID,
		Email:     strings.TrimSpace(email),
		Status:    OrderPending,
		CreatedAt: s.now().UTC(),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.putJSON(kindOrder, order.ID, order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// UpdateOrderStatus advances an order through its lifecycle, enforcing the
// allowed transitions.
func (s *Service) UpdateOrderStatus(id string, status OrderStatus) (Order, error) {
	order, err := s.GetOrder(id)
	if err != nil {
		return Order{}, err
	}
	allowed := false
	for _, next := range allowedTransitions[order.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return Order{}, fmt.Errorf("%w: cannot move order from %s to %s", ErrInvalid, order.Status, status)
	}
	order.Status = status
	order.UpdatedAt = s.now().UTC()
	if err := s.putJSON(kindOrder, order.ID, order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// DeleteOrder removes an order by id.
func (s *Service) DeleteOrder(id string) error {
	return s.store.DeleteRecord(kindOrder, id)
}

// GetOrder returns an order by id.
func (s *Service) GetOrder(id string) (Order, error) {
	data, err := s.store.GetRecord(kindOrder, id)
	if err != nil {
		return Order{}, err
	}
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListOrders returns all orders, newest first.
func (s *Service) ListOrders() ([]Order, error) {
	records, err := s.store.ListRecords(kindOrder)
	if err != nil {
		return nil, err
	}
	orders := make([]Order, 0, len(records))
	for _, data := range records {
		var o Order
		if err := json.Unmarshal(data, &o); err != nil {
			continue
		}
		orders = append(orders, o)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// --- Settings ---

// SetSetting writes one site setting into the shared settings tier. The
// key holding the TOTP secret is reserved and rejected here so the secret
// can never be overwritten or read through the settings surface.
func (s *Service) SetSetting(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: setting key is required", ErrInvalid)
	}
	if key == auth.SecretKey {
		return fmt.Errorf("%w: setting key %q is reserved", ErrInvalid, key)
	}
	return s.store.PutSetting(key, value)
}

// GetSettings returns all site settings except reserved keys.
func (s *Service) GetSettings() (map[string]string, error) {
	settings, err := s.store.ListSettings()
	if err != nil {
		return nil, err
	}
	delete(settings, auth.SecretKey)
	return settings, nil
}
