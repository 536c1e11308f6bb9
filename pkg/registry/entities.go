package registry

import (
	"context"
	"strings"

	"github.com/Rhymond/go-money"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/openmuni/cashsync/pkg/cashctrl"
	"github.com/openmuni/cashsync/pkg/models"
)

// Default builds the registry for the full remote resource map.
func Default() *Registry {
	r := New()

	r.Register(&Config{
		Resource:        cashctrl.Currency,
		Fields:          []string{"code", "description", "rate", "index", "is_default"},
		LocalizedFields: []string{"description"},
		PreUpload:       currencyPreUpload,
	})

	r.Register(&Config{
		Resource:        cashctrl.CustomFieldGroup,
		Fields:          []string{"name", "type"},
		LocalizedFields: []string{"name"},
	})

	r.Register(&Config{
		Resource: cashctrl.CustomField,
		Fields: []string{"name", "type", "data_type", "description",
			"group", "group_id", "is_multi", "values"},
		IgnoreKeys:      []string{"values"},
		LocalizedFields: []string{"name"},
		PreUpload: derefPreUpload("custom_field",
			deref{Local: "group", Target: "custom_field_group", Wire: "group_id", Required: true}),
	})

	r.Register(&Config{
		Resource: cashctrl.FiscalPeriod,
		Fields:   []string{"name", "start", "end", "is_closed", "is_current", "is_custom"},
	})

	r.Register(&Config{
		Resource: cashctrl.Location,
		Fields: []string{"name", "type", "address", "zip", "city", "country",
			"bic", "iban", "qr_iban", "vat_uid"},
		PreUpload: locationPreUpload,
	})

	r.Register(&Config{
		Resource:  cashctrl.Setting,
		AllFields: true,
	})

	r.Register(&Config{
		Resource:        cashctrl.Rounding,
		Fields:          []string{"name", "mode", "value", "account_id", "is_default"},
		LocalizedFields: []string{"name"},
	})

	r.Register(&Config{
		Resource:        cashctrl.SequenceNumber,
		Fields:          []string{"name", "pattern"},
		LocalizedFields: []string{"name"},
	})

	r.Register(&Config{
		Resource: cashctrl.Tax,
		Fields: []string{"name", "document_name", "calc_type", "percentage",
			"percentage_flat", "account", "account_id", "is_inactive"},
		IgnoreKeys:      []string{"is_inactive"},
		LocalizedFields: []string{"name", "document_name"},
		PreUpload: derefPreUpload("tax",
			deref{Local: "account", Target: "account", Wire: "account_id", Required: true}),
	})

	r.Register(&Config{
		Resource:        cashctrl.Unit,
		Fields:          []string{"name"},
		LocalizedFields: []string{"name"},
	})

	r.Register(&Config{
		Resource:        cashctrl.Title,
		Fields:          []string{"name", "gender", "sentence"},
		LocalizedFields: []string{"name", "sentence"},
	})

	r.Register(&Config{
		Resource:        cashctrl.PersonCategory,
		Fields:          []string{"name", "parent", "parent_id"},
		LocalizedFields: []string{"name"},
		ParentField:     "parent_id",
		PreUpload:       hierarchicalPreUpload("person_category"),
		PostGet:         hierarchicalPostGet("person_category"),
	})

	r.Register(&Config{
		Resource: cashctrl.Person,
		Fields: []string{"nr", "first_name", "last_name", "company", "position",
			"department", "addresses", "contacts", "title", "title_id",
			"category", "category_id", "language", "date_birth", "color",
			"vat_uid", "notes", "is_inactive"},
		IgnoreKeys: []string{"notes"},
		PreUpload: derefPreUpload("person",
			deref{Local: "title", Target: "title", Wire: "title_id"},
			deref{Local: "category", Target: "person_category", Wire: "category_id"}),
	})

	r.Register(&Config{
		Resource:        cashctrl.AccountCategory,
		Fields:          []string{"name", "number", "parent", "parent_id"},
		LocalizedFields: []string{"name"},
		ParentField:     "parent_id",
		PreUpload: chainPre(
			hierarchicalPreUpload("account_category"),
			headingNumbersPreUpload),
		PostGet: chainPost(
			hierarchicalPostGet("account_category"),
			headingNumbersPostGet),
	})

	r.Register(&Config{
		Resource: cashctrl.Account,
		Fields: []string{"name", "number", "category", "category_id",
			"currency", "currency_id", "tax_id", "target_max", "target_min",
			"notes", "is_inactive"},
		IgnoreKeys:      []string{"notes"},
		LocalizedFields: []string{"name"},
		PreUpload: derefPreUpload("account",
			deref{Local: "category", Target: "account_category", Wire: "category_id", Required: true}),
	})

	r.Register(&Config{
		Resource:        cashctrl.CostCenterCategory,
		Fields:          []string{"name", "number", "parent", "parent_id"},
		LocalizedFields: []string{"name"},
		ParentField:     "parent_id",
		PreUpload: chainPre(
			hierarchicalPreUpload("cost_center_category"),
			headingNumbersPreUpload),
		PostGet: chainPost(
			hierarchicalPostGet("cost_center_category"),
			headingNumbersPostGet,
			syntheticCodePostGet),
	})

	r.Register(&Config{
		Resource: cashctrl.CostCenter,
		Fields: []string{"name", "number", "code", "category", "category_id",
			"target_max", "target_min", "is_inactive"},
		LocalizedFields: []string{"name"},
		PreUpload: derefPreUpload("cost_center",
			deref{Local: "category", Target: "cost_center_category", Wire: "category_id"}),
		PostGet: syntheticCodePostGet,
	})

	r.Register(&Config{
		Resource: cashctrl.OrderCategory,
		Fields: []string{"name", "name_plural", "account_id", "status", "type",
			"address_type", "book_type", "book_templates", "due_days",
			"header", "footer", "is_display_prices", "sequence_nr_id",
			"template_id", "rounding_id", "responsible_person_id"},
		LocalizedFields: []string{"name", "name_plural"},
		PreSave:         orderCategoryPreSave,
	})

	r.Register(&Config{
		Resource: cashctrl.Order,
		Fields: []string{"nr", "date", "due_days", "category", "category_id",
			"associate_id", "description", "items", "currency_id",
			"rounding_id", "status_id", "language", "notes"},
		IgnoreKeys: []string{"notes"},
		PreUpload: derefPreUpload("order",
			deref{Local: "category", Target: "order_category", Wire: "category_id", Required: true}),
	})

	r.Register(&Config{Resource: cashctrl.OrderDocument, AllFields: true})
	r.Register(&Config{Resource: cashctrl.OrderTemplate, AllFields: true})

	r.Register(&Config{
		Resource:        cashctrl.ArticleCategory,
		Fields:          []string{"name", "parent", "parent_id", "sales_account_id", "purchase_account_id"},
		LocalizedFields: []string{"name"},
		ParentField:     "parent_id",
		PreUpload:       hierarchicalPreUpload("article_category"),
		PostGet:         hierarchicalPostGet("article_category"),
	})

	r.Register(&Config{
		Resource: cashctrl.Article,
		Fields: []string{"nr", "name", "description", "category", "category_id",
			"unit_id", "sales_price", "last_purchase_price", "is_stock_article",
			"stock", "min_stock", "max_stock", "bin_location", "location_id",
			"notes", "is_inactive"},
		IgnoreKeys:      []string{"notes"},
		LocalizedFields: []string{"name", "description"},
		PreUpload: derefPreUpload("article",
			deref{Local: "category", Target: "article_category", Wire: "category_id"}),
	})

	r.Register(&Config{
		Resource:        cashctrl.FileCategory,
		Fields:          []string{"name", "parent", "parent_id"},
		LocalizedFields: []string{"name"},
		ParentField:     "parent_id",
		PreUpload:       hierarchicalPreUpload("file_category"),
		PostGet:         hierarchicalPostGet("file_category"),
	})

	r.Register(&Config{
		Resource: cashctrl.File,
		Fields: []string{"name", "description", "category", "category_id",
			"mime_type", "notes"},
		PreUpload: derefPreUpload("file",
			deref{Local: "category", Target: "file_category", Wire: "category_id"}),
	})

	return r
}

// chainPre runs hooks in order, stopping at the first error.
func chainPre(hooks ...PreUploadHook) PreUploadHook {
	return func(ctx context.Context, env Env, inst *models.Instance, payload map[string]any) error {
		for _, h := range hooks {
			if err := h(ctx, env, inst, payload); err != nil {
				return err
			}
		}
		return nil
	}
}

func chainPost(hooks ...PostGetHook) PostGetHook {
	return func(ctx context.Context, env Env, inst *models.Instance, source map[string]any, created bool) error {
		for _, h := range hooks {
			if err := h(ctx, env, inst, source, created); err != nil {
				return err
			}
		}
		return nil
	}
}

// deref declares one foreign-key translation: a local attribute holding
// a local row id becomes the referenced row's remote id on the wire.
type deref struct {
	Local    string
	Target   string
	Wire     string
	Required bool
}

func derefPreUpload(entity string, refs ...deref) PreUploadHook {
	return func(ctx context.Context, env Env, inst *models.Instance, payload map[string]any) error {
		for _, ref := range refs {
			raw, present := payload[ref.Local]
			delete(payload, ref.Local)
			if present && raw != nil {
				localID, ok := asInt64(raw)
				if !ok {
					return &MissingRequiredFieldError{Entity: entity, Field: ref.Local}
				}
				row, err := env.Instance(localID)
				if err != nil {
					return err
				}
				if row == nil || row.CID == nil {
					return &MissingRequiredFieldError{Entity: entity, Field: ref.Local}
				}
				payload[ref.Wire] = *row.CID
			}
			if ref.Required {
				if v, ok := payload[ref.Wire]; !ok || v == nil {
					return &MissingRequiredFieldError{Entity: entity, Field: ref.Local}
				}
			}
		}
		return nil
	}
}

// hierarchicalPreUpload dereferences the self-referencing parent: the
// "parent" attribute holds the local row id, the wire wants the remote
// parent_id.
func hierarchicalPreUpload(entity string) PreUploadHook {
	return func(ctx context.Context, env Env, inst *models.Instance, payload map[string]any) error {
		raw, present := payload["parent"]
		delete(payload, "parent")
		if !present || raw == nil {
			return nil
		}
		localID, ok := asInt64(raw)
		if !ok {
			return &MissingRequiredFieldError{Entity: entity, Field: "parent"}
		}
		parent, err := env.Instance(localID)
		if err != nil {
			return err
		}
		if parent == nil || parent.CID == nil {
			return &MissingRequiredFieldError{Entity: entity, Field: "parent"}
		}
		payload["parent_id"] = *parent.CID
		return nil
	}
}

// hierarchicalPostGet re-resolves the local parent reference from the
// downloaded parent_id, lazily fetching unseen parents.
func hierarchicalPostGet(entity string) PostGetHook {
	return func(ctx context.Context, env Env, inst *models.Instance, source map[string]any, created bool) error {
		pid, ok := asInt64(inst.Attr("parent_id"))
		if !ok || pid == 0 {
			inst.SetAttr("parent", nil)
			return nil
		}
		parent, err := env.ResolveParent(ctx, entity, pid)
		if err != nil {
			return err
		}
		if parent != nil {
			inst.SetAttr("parent", parent.ID)
		}
		return nil
	}
}

// locationPreUpload sanity-checks the country code. The remote expects
// ISO alpha-3 and silently ignores anything else.
func locationPreUpload(ctx context.Context, env Env, inst *models.Instance, payload map[string]any) error {
	code, _ := payload["country"].(string)
	if code != "" && !models.IsCountryCode(code) {
		log.Warn().Str("country", code).Msg("Uploading location with unknown country code")
	}
	return nil
}

// currencyPreUpload sanity-checks the currency code. Unknown codes are
// allowed (the remote accepts custom currencies) but worth a warning.
func currencyPreUpload(ctx context.Context, env Env, inst *models.Instance, payload map[string]any) error {
	code, _ := payload["code"].(string)
	if code == "" {
		return &MissingRequiredFieldError{Entity: "currency", Field: "code"}
	}
	if money.GetCurrency(code) == nil {
		log.Warn().Str("code", code).Msg("Uploading currency with non-ISO code")
	}
	return nil
}

// headingNumbersPreUpload prefixes every language of a category name
// with the category number when the setup asks for it.
func headingNumbersPreUpload(ctx context.Context, env Env, inst *models.Instance, payload map[string]any) error {
	if !env.Setup().EncodeNumbersInHeadings {
		return nil
	}
	number := numberString(payload["number"])
	if number == "" {
		return nil
	}
	name := localizedValue(payload["name"])
	if name == nil {
		return nil
	}
	out := models.LocalizedText{}
	for lang, v := range name {
		if v != "" && !strings.HasPrefix(v, number+" ") {
			v = number + " " + v
		}
		out[lang] = v
	}
	payload["name"] = out
	return nil
}

// headingNumbersPostGet strips the number prefix again on download.
func headingNumbersPostGet(ctx context.Context, env Env, inst *models.Instance, source map[string]any, created bool) error {
	if !env.Setup().EncodeNumbersInHeadings {
		return nil
	}
	number := numberString(inst.Attr("number"))
	if number == "" {
		return nil
	}
	name := inst.LocalizedAttr("name")
	if name == nil {
		return nil
	}
	out := models.LocalizedText{}
	for lang, v := range name {
		out[lang] = strings.TrimPrefix(v, number+" ")
	}
	inst.SetAttr("name", out)
	return nil
}

// syntheticCodePostGet fills in a stable code for rows the remote
// returns without one.
func syntheticCodePostGet(ctx context.Context, env Env, inst *models.Instance, source map[string]any, created bool) error {
	if inst.StringAttr("code") == "" && inst.CID != nil {
		inst.SetAttr("code", "custom "+numberString(*inst.CID))
	}
	return nil
}

// orderCategoryPreSave captures the per-state ids that only read.json
// returns, so local book templates can reference them.
func orderCategoryPreSave(ctx context.Context, env Env, inst *models.Instance) error {
	if inst.CID == nil {
		return nil
	}
	payload, err := env.Gateway(cashctrl.OrderCategory).Read(ctx, *inst.CID)
	if err != nil {
		return err
	}
	raw, ok := payload["status"]
	if !ok {
		return nil
	}
	if s, isString := raw.(string); isString {
		var status []any
		if err := json.Unmarshal([]byte(s), &status); err == nil {
			inst.SetAttr("status", status)
			return nil
		}
	}
	inst.SetAttr("status", raw)
	return nil
}
