package cashctrl

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/openmuni/cashsync/pkg/models"
)

// Resource identifies one remote endpoint family. Typed resources exist
// once per element type and are listed per type and concatenated.
type Resource struct {
	Name     string
	Path     string
	Typed    bool
	ReadOnly bool
}

// The fixed remote resource map.
var (
	Currency           = Resource{Name: "currency", Path: "currency"}
	CustomFieldGroup   = Resource{Name: "custom_field_group", Path: "customfield/group", Typed: true}
	CustomField        = Resource{Name: "custom_field", Path: "customfield", Typed: true}
	FiscalPeriod       = Resource{Name: "fiscal_period", Path: "fiscalperiod"}
	Location           = Resource{Name: "location", Path: "location"}
	Setting            = Resource{Name: "setting", Path: "setting"}
	Rounding           = Resource{Name: "rounding", Path: "rounding"}
	SequenceNumber     = Resource{Name: "sequence_number", Path: "sequencenumber"}
	Tax                = Resource{Name: "tax", Path: "tax"}
	Unit               = Resource{Name: "unit", Path: "inventory/unit"}
	Title              = Resource{Name: "title", Path: "person/title"}
	PersonCategory     = Resource{Name: "person_category", Path: "person/category"}
	Person             = Resource{Name: "person", Path: "person"}
	AccountCategory    = Resource{Name: "account_category", Path: "account/category"}
	Account            = Resource{Name: "account", Path: "account"}
	CostCenterCategory = Resource{Name: "cost_center_category", Path: "account/costcenter/category"}
	CostCenter         = Resource{Name: "cost_center", Path: "account/costcenter"}
	OrderCategory      = Resource{Name: "order_category", Path: "order/category"}
	Order              = Resource{Name: "order", Path: "order"}
	OrderDocument      = Resource{Name: "order_document", Path: "order/document", ReadOnly: true}
	OrderTemplate      = Resource{Name: "order_template", Path: "order/template", ReadOnly: true}
	ArticleCategory    = Resource{Name: "article_category", Path: "inventory/article/category"}
	Article            = Resource{Name: "article", Path: "inventory/article"}
	FileCategory       = Resource{Name: "file_category", Path: "file/category"}
	File               = Resource{Name: "file", Path: "file"}
)

// Filter is one server-side list predicate, sent as a JSON array in the
// "filter" query parameter.
type Filter struct {
	Comparison string `json:"comparison"`
	Field      string `json:"field"`
	Value      any    `json:"value"`
}

// Eq builds the equality filter, the only comparison the engine uses.
func Eq(field string, value any) Filter {
	return Filter{Comparison: "eq", Field: field, Value: value}
}

// Gateway is the typed transport wrapper for one resource.
type Gateway struct {
	client *Client
	res    Resource
}

// Resource returns the gateway for the given resource.
func (c *Client) Resource(res Resource) *Gateway {
	return &Gateway{client: c, res: res}
}

// Res returns the resource descriptor the gateway serves.
func (g *Gateway) Res() Resource { return g.res }

// List fetches all payloads, iterating the element-type family for
// typed resources and concatenating the per-type results.
func (g *Gateway) List(ctx context.Context, params url.Values, filters ...Filter) ([]Payload, error) {
	base := url.Values{}
	for k, vs := range params {
		base[k] = vs
	}
	if len(filters) > 0 {
		raw, err := json.Marshal(filters)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filters: %w", err)
		}
		base.Set("filter", string(raw))
	}

	if !g.res.Typed {
		return g.listOnce(ctx, base)
	}

	var all []Payload
	for _, t := range models.ElementTypes {
		typed := url.Values{}
		for k, vs := range base {
			typed[k] = vs
		}
		typed.Set("type", string(t))
		page, err := g.listOnce(ctx, typed)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
	return all, nil
}

func (g *Gateway) listOnce(ctx context.Context, params url.Values) ([]Payload, error) {
	env, err := g.client.Get(ctx, g.res.Path+"/list.json", params)
	if err != nil {
		return nil, err
	}
	return env.Many()
}

// Read fetches a single payload by remote id.
func (g *Gateway) Read(ctx context.Context, id int64) (Payload, error) {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(id, 10))
	env, err := g.client.Get(ctx, g.res.Path+"/read.json", params)
	if err != nil {
		return nil, err
	}
	return env.One()
}

// Create posts a new resource and returns the assigned remote id.
func (g *Gateway) Create(ctx context.Context, form url.Values) (int64, error) {
	if g.res.ReadOnly {
		return 0, fmt.Errorf("resource %s is read-only", g.res.Name)
	}
	env, err := g.client.PostForm(ctx, g.res.Path+"/create.json", form)
	if err != nil {
		return 0, err
	}
	return env.InsertID, nil
}

// Update posts changed fields for an existing resource (identified by
// the "id" form field) and returns its remote id.
func (g *Gateway) Update(ctx context.Context, form url.Values) (int64, error) {
	if g.res.ReadOnly {
		return 0, fmt.Errorf("resource %s is read-only", g.res.Name)
	}
	env, err := g.client.PostForm(ctx, g.res.Path+"/update.json", form)
	if err != nil {
		return 0, err
	}
	if env.InsertID != 0 {
		return env.InsertID, nil
	}
	// Some update responses omit insertId; the id is unchanged.
	return strconv.ParseInt(form.Get("id"), 10, 64)
}

// Delete removes one or more resources by remote id.
func (g *Gateway) Delete(ctx context.Context, ids ...int64) error {
	if g.res.ReadOnly {
		return fmt.Errorf("resource %s is read-only", g.res.Name)
	}
	if len(ids) == 0 {
		return nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	form := url.Values{}
	form.Set("ids", strings.Join(parts, ","))
	_, err := g.client.PostForm(ctx, g.res.Path+"/delete.json", form)
	return err
}
