package domain

import (
	"slices"
	"strconv"
	"strings"
)

const (
	// UnknownProduct is recorded for chunks whose source row carried no product label.
	UnknownProduct = "Unknown"
	// MissingProduct is reported for index entries without any product metadata.
	MissingProduct = "N/A"

	AllProducts = "All Products"
)

// ProductOptions are the scopes offered by presentation layers.
var ProductOptions = []string{
	AllProducts,
	"Credit card",
	"Mortgage",
	"Debt collection",
	"Student loan",
	"Vehicle loan",
	"Checking account",
	"Savings account",
	"Money transfer",
}

// TargetProducts are the product categories kept during corpus preparation.
var TargetProducts = []string{
	"Credit card",
	"Credit card or prepaid card",
	"Mortgage",
	"Checking or savings account",
	"Student loan",
	"Vehicle loan or lease",
}

type Complaint struct {
	ID        string `json:"id"`
	Product   string `json:"product"`
	Narrative string `json:"narrative"`
}

// ChunkRecord is the interchange row produced by the chunker.
type ChunkRecord struct {
	ChunkID    string `json:"chunk_id"`
	Text       string `json:"text"`
	Product    string `json:"product"`
	OriginalID string `json:"original_id,omitempty"`
}

// ChunkMeta is a metadata entry normalized from either on-disk layout.
type ChunkMeta struct {
	ChunkID string
	Text    string
	Product string
}

// NormalizeProductFilter maps presentation scopes to a retrieval filter.
// The empty string means unfiltered.
func NormalizeProductFilter(filter string) string {
	filter = strings.TrimSpace(filter)
	if strings.EqualFold(filter, AllProducts) {
		return ""
	}
	return filter
}

// MatchesProduct reports whether product contains filter, ignoring case.
func MatchesProduct(product, filter string) bool {
	if filter == "" {
		return true
	}
	// The marker stands for an empty product, which no filter matches.
	if product == MissingProduct {
		return false
	}
	return strings.Contains(strings.ToLower(product), strings.ToLower(filter))
}

// ChunkID names window i of a complaint. Rows without an id fall back to "doc".
func ChunkID(complaintID string, window int) string {
	if complaintID == "" {
		complaintID = "doc"
	}
	return complaintID + "_" + strconv.Itoa(window)
}

// IsTargetProduct reports an exact match against TargetProducts.
func IsTargetProduct(product string) bool {
	return slices.Contains(TargetProducts, product)
}
