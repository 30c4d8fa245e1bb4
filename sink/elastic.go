package sink

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/luno/docstream"
)

// NewElastic returns a sink indexing documents in the "<db>-<coll>" index
// using the document id. Deletes remove the document.
func NewElastic(es *elasticsearch.Client) *Elastic {
	return &Elastic{es: es}
}

// NewElasticClient returns an elasticsearch client for the address.
func NewElasticClient(address string) (*elasticsearch.Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{address},
	})
	if err != nil {
		return nil, errors.Wrap(err, "new elasticsearch client", j.KS("address", address))
	}
	return es, nil
}

// Elastic is a docstream.Sink.
type Elastic struct {
	es *elasticsearch.Client
}

func (s *Elastic) Name() string {
	return "elasticsearch"
}

// indexName returns the routing key lower cased since index names must
// be lower case.
func indexName(e docstream.Envelope) string {
	return strings.ToLower(e.RoutingKey())
}

func (s *Elastic) Put(ctx context.Context, e docstream.Envelope) error {
	index := indexName(e)

	if e.Payload.Op == docstream.OpDelete {
		res, err := s.es.Delete(index, e.Payload.ID, s.es.Delete.WithContext(ctx))
		if err != nil {
			return errors.Wrap(err, "delete document", j.KS("index", index))
		}
		defer res.Body.Close()

		// Already deleted on redelivery.
		if res.StatusCode == http.StatusNotFound {
			return nil
		}
		return checkResponse(res, index)
	}

	body, err := e.Payload.BodyJSON()
	if err != nil {
		return err
	}

	res, err := s.es.Index(index, bytes.NewReader(body),
		s.es.Index.WithDocumentID(e.Payload.ID),
		s.es.Index.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "index document", j.KS("index", index))
	}
	defer res.Body.Close()

	return checkResponse(res, index)
}

func checkResponse(res *esapi.Response, index string) error {
	if !res.IsError() {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return errors.New("elasticsearch error", j.MKV{
		"index":  index,
		"status": res.StatusCode,
		"body":   string(msg),
	})
}

var _ docstream.Sink = (*Elastic)(nil)
