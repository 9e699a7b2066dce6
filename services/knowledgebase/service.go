package knowledgebase

import (
	"context"
	"fmt"
	"log"
	"time"

	"clinicchat/models"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	searchTopK = 5
	namespace  = "office-docs"
)

// Service wraps the Pinecone index holding the clinic's knowledge-base
// documents. Search is what the chat orchestrator consumes; the management
// operations back the dashboard's document editor and the indexdocs CLI.
type Service struct {
	client    *pinecone.Client
	embedder  embeddings.Embedder
	indexName string
}

func NewService(pineconeAPIKey, openaiAPIKey, indexName string) (*Service, error) {
	log.Printf("[INFO] Initializing knowledge base service")

	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: pineconeAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	llm, err := openai.New(
		openai.WithModel("gpt-4o-mini"),
		openai.WithToken(openaiAPIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	service := &Service{
		client:    pc,
		embedder:  embedder,
		indexName: indexName,
	}

	log.Printf("[INFO] Knowledge base service initialized successfully")
	return service, nil
}

// Search returns the contents of the documents most relevant to query,
// best match first. An empty slice means nothing relevant was found.
func (s *Service) Search(ctx context.Context, query string) ([]string, error) {
	log.Printf("[INFO] Searching knowledge base for: %q", query)

	idxConn, err := s.indexConnection(ctx)
	if err != nil {
		return nil, err
	}

	queryEmbeddings, err := s.embedder.EmbedDocuments(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	result, err := idxConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          queryEmbeddings[0],
		TopK:            searchTopK,
		IncludeValues:   false,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	var documents []string
	for _, match := range result.Matches {
		if match.Vector.Metadata == nil {
			continue
		}
		metadata := match.Vector.Metadata.AsMap()
		if content, ok := metadata["content"].(string); ok && content != "" {
			documents = append(documents, content)
		}
	}

	log.Printf("[INFO] Knowledge base search returned %d documents", len(documents))
	return documents, nil
}

// Add embeds and upserts a document under the given id, overwriting any
// existing document with that id.
func (s *Service) Add(ctx context.Context, id, content string) error {
	log.Printf("[INFO] Adding document %q to knowledge base", id)

	if id == "" {
		return fmt.Errorf("document id is required")
	}
	if content == "" {
		return fmt.Errorf("document content is required")
	}

	idxConn, err := s.indexConnection(ctx)
	if err != nil {
		return err
	}

	docEmbeddings, err := s.embedder.EmbedDocuments(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("failed to generate document embedding: %w", err)
	}

	metadata, err := structpb.NewStruct(map[string]any{
		"content":    content,
		"updated_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to create metadata for document %q: %w", id, err)
	}

	_, err = idxConn.UpsertVectors(ctx, []*pinecone.Vector{
		{
			Id:       id,
			Values:   &docEmbeddings[0],
			Metadata: metadata,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document %q: %w", id, err)
	}

	log.Printf("[INFO] Document %q added to knowledge base", id)
	return nil
}

// Update has upsert semantics, matching how the vector store treats ids.
func (s *Service) Update(ctx context.Context, id, content string) error {
	return s.Add(ctx, id, content)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	log.Printf("[INFO] Deleting document %q from knowledge base", id)

	if id == "" {
		return fmt.Errorf("document id is required")
	}

	idxConn, err := s.indexConnection(ctx)
	if err != nil {
		return err
	}

	if err := idxConn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to delete document %q: %w", id, err)
	}

	log.Printf("[INFO] Document %q deleted from knowledge base", id)
	return nil
}

// List returns every stored document, paging through the index.
func (s *Service) List(ctx context.Context) ([]*models.Document, error) {
	log.Printf("[INFO] Listing knowledge base documents")

	idxConn, err := s.indexConnection(ctx)
	if err != nil {
		return nil, err
	}

	var documents []*models.Document
	limit := uint32(100)
	var paginationToken *string

	for {
		listResp, err := idxConn.ListVectors(ctx, &pinecone.ListVectorsRequest{
			Limit:           &limit,
			PaginationToken: paginationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list vectors: %w", err)
		}

		ids := make([]string, 0, len(listResp.VectorIds))
		for _, vectorID := range listResp.VectorIds {
			if vectorID != nil {
				ids = append(ids, *vectorID)
			}
		}

		if len(ids) > 0 {
			fetchResp, err := idxConn.FetchVectors(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch vectors: %w", err)
			}

			for _, id := range ids {
				vector, ok := fetchResp.Vectors[id]
				if !ok || vector.Metadata == nil {
					continue
				}
				metadata := vector.Metadata.AsMap()
				content, _ := metadata["content"].(string)
				documents = append(documents, &models.Document{
					ID:      id,
					Content: content,
				})
			}
		}

		if listResp.NextPaginationToken == nil {
			break
		}
		paginationToken = listResp.NextPaginationToken
	}

	log.Printf("[INFO] Listed %d knowledge base documents", len(documents))
	return documents, nil
}

func (s *Service) indexConnection(ctx context.Context) (*pinecone.IndexConnection, error) {
	idxDesc, err := s.client.DescribeIndex(ctx, s.indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index: %w", err)
	}

	idxConn, err := s.client.Index(pinecone.NewIndexConnParams{
		Host:      idxDesc.Host,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index connection: %w", err)
	}

	return idxConn, nil
}
