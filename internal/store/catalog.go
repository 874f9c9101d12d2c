package store

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/models"
)

// CatalogIndex keeps every successfully extracted candidate in Elasticsearch
// so a page seen before skips the model call.
type CatalogIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewCatalogIndex(es *elasticsearch.Client, index string) *CatalogIndex {
	if index == "" {
		index = "universities"
	}
	return &CatalogIndex{es: es, index: index}
}

// DocumentID is the index id for a page URL.
func DocumentID(url string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}

// Index stores rec under the hash of its URL, replacing any earlier copy.
func (c *CatalogIndex) Index(ctx context.Context, rec models.RawCandidateRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	res, err := c.es.Index(
		c.index,
		bytes.NewReader(body),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(DocumentID(rec.URL)),
	)
	if err != nil {
		return apperrors.NewIndexUnavailableError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewIndexUnavailableError(fmt.Errorf("index %s: %s", rec.URL, res.Status()))
	}
	return nil
}

// GetByURL returns the indexed record for url, if any.
func (c *CatalogIndex) GetByURL(ctx context.Context, url string) (models.RawCandidateRecord, bool, error) {
	res, err := c.es.Get(c.index, DocumentID(url), c.es.Get.WithContext(ctx))
	if err != nil {
		return models.RawCandidateRecord{}, false, apperrors.NewIndexUnavailableError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, res.Body)
		return models.RawCandidateRecord{}, false, nil
	}
	if res.IsError() {
		return models.RawCandidateRecord{}, false, apperrors.NewIndexUnavailableError(fmt.Errorf("get: %s", res.Status()))
	}

	var doc struct {
		Found  bool                      `json:"found"`
		Source models.RawCandidateRecord `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return models.RawCandidateRecord{}, false, apperrors.NewIndexUnavailableError(err)
	}
	return doc.Source, doc.Found, nil
}

// SearchByCountry returns up to limit indexed candidates for a country.
func (c *CatalogIndex) SearchByCountry(ctx context.Context, country string, limit int) ([]models.RawCandidateRecord, error) {
	query := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"country": country,
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, apperrors.NewIndexUnavailableError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewIndexUnavailableError(fmt.Errorf("search: %s", res.Status()))
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Source models.RawCandidateRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, apperrors.NewIndexUnavailableError(err)
	}

	records := make([]models.RawCandidateRecord, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		records = append(records, h.Source)
	}
	return records, nil
}
