package resources

import (
	"context"
	"encoding/json"

	"github.com/hirosato/finance-assistant/internal/domain/account"
	appErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
	"github.com/hirosato/finance-assistant/internal/domain/mcp"
)

// CategoryLister returns the chart-of-accounts taxonomy
type CategoryLister interface {
	ListAccountCategories(ctx context.Context) (account.Categories, error)
}

// AccountCategoriesResource exposes the taxonomy as a readable resource
type AccountCategoriesResource struct {
	lister CategoryLister
}

func NewAccountCategoriesResource(lister CategoryLister) *AccountCategoriesResource {
	return &AccountCategoriesResource{lister: lister}
}

func (r *AccountCategoriesResource) GetURI() string {
	return "finance://accounts/categories"
}

func (r *AccountCategoriesResource) GetName() string {
	return "Account Categories"
}

func (r *AccountCategoriesResource) GetDescription() string {
	return "Active chart of accounts grouped by type and subtype"
}

func (r *AccountCategoriesResource) GetMimeType() string {
	return "application/json"
}

func (r *AccountCategoriesResource) Read(ctx context.Context) (*mcp.ReadResourceResult, error) {
	categories, err := r.lister.ListAccountCategories(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(categories)
	if err != nil {
		return nil, appErrors.NewInternalError("encode categories", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []mcp.ResourceContent{
			{
				URI:      r.GetURI(),
				MimeType: r.GetMimeType(),
				Text:     string(data),
			},
		},
	}, nil
}
