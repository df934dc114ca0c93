package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dgallion1/docdigest/internal/extract"
	"github.com/dgallion1/docdigest/internal/pathstore"
)

// DocumentRef identifies a digested document when publishing.
type DocumentRef struct {
	UserID      string
	DocID       string
	Filename    string
	ContentHash string
}

// Publisher receives finished aggregates.
type Publisher interface {
	Publish(ctx context.Context, doc DocumentRef, agg *Aggregate) error
}

// PathstorePublisher writes aggregates into a pathstore tree:
//
//	<prefix>/users/<user>/documents/<doc>/meta
//	<prefix>/users/<user>/documents/<doc>/summaries/<n>
//	<prefix>/users/<user>/documents/<doc>/glossary/<term-slug>
//
// Glossary terms are also linked into <prefix>/users/<user>/glossary/<term-slug>.
type PathstorePublisher struct {
	client *pathstore.Client
	prefix string
}

func NewPathstorePublisher(client *pathstore.Client, prefix string) *PathstorePublisher {
	if prefix == "" {
		prefix = "docdigest"
	}
	return &PathstorePublisher{client: client, prefix: prefix}
}

func (p *PathstorePublisher) Publish(ctx context.Context, doc DocumentRef, agg *Aggregate) error {
	user := doc.UserID
	if user == "" {
		user = "default"
	}
	docPrefix := fmt.Sprintf("%s/users/%s/documents/%s", p.prefix, user, doc.DocID)
	source := "docdigest:" + doc.DocID

	// Replace whatever an earlier run of this document left behind.
	if err := p.client.DeleteNode(ctx, docPrefix, true); err != nil {
		return err
	}

	switch agg.Mode {
	case extract.ModeGlossary:
		for _, e := range agg.Glossary {
			slug := extract.Slugify(e.Term)
			if slug == "" {
				continue
			}
			key := docPrefix + "/glossary/" + slug
			err := p.client.PutNode(ctx, key, pathstore.NodeRequest{
				Value: map[string]any{
					"term":       e.Term,
					"definition": e.Definition,
					"details":    e.Details,
				},
				MemoryType: "semantic",
				Salience:   0.6,
				Source:     source,
			})
			if err != nil {
				return err
			}
			err = p.client.PutLink(ctx, pathstore.LinkRequest{
				From:    fmt.Sprintf("%s/users/%s/glossary/%s", p.prefix, user, slug),
				To:      key,
				Weight:  1,
				Summary: "defined in " + doc.Filename,
			})
			if err != nil {
				return err
			}
		}
	default:
		for _, s := range agg.Summaries {
			err := p.client.PutNode(ctx, fmt.Sprintf("%s/summaries/%d", docPrefix, s.Index+1), pathstore.NodeRequest{
				Value: map[string]any{
					"topic":  s.Topic,
					"points": s.Points,
					"chunk":  s.Index,
				},
				MemoryType: "semantic",
				Salience:   0.5,
				Source:     source,
			})
			if err != nil {
				return err
			}
		}
	}

	return p.client.PutNode(ctx, docPrefix+"/meta", pathstore.NodeRequest{
		Value: map[string]any{
			"filename":     doc.Filename,
			"content_hash": doc.ContentHash,
			"mode":         agg.Mode,
			"entries":      agg.Len(),
			"skipped":      agg.Skipped,
			"created_at":   time.Now().UTC().Format(time.RFC3339),
		},
		MemoryType: "metacognitive",
		Salience:   0.1,
		Source:     source,
	})
}
