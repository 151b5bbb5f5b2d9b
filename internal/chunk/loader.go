package chunk

import (
	"encoding/json"
	"fmt"
	"os"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
)

// LoadDocuments reads a JSON array of documents from path.
// An empty array, a malformed file or a document without an ID is rejected.
func LoadDocuments(path string) ([]*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, amerrors.New(amerrors.ErrCodeFileNotFound, "documents file not found: "+path, err)
		}
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	var docs []*Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeInvalidInput, "invalid documents file "+path, err)
	}
	if len(docs) == 0 {
		return nil, amerrors.EmptyInput("no documents in " + path)
	}
	for i, d := range docs {
		if d == nil || d.ID == "" {
			return nil, amerrors.InvalidInput(fmt.Sprintf("document %d in %s has no doc_id", i, path))
		}
	}
	return docs, nil
}
