package core

import "github.com/devmem/devmem-go/pkg/storage"

// toStorageItem converts a core MemoryItem to its storage representation.
func toStorageItem(item *MemoryItem, owner string) *storage.Item {
	return &storage.Item{
		ID:        item.ID,
		Category:  string(item.Category),
		Owner:     owner,
		Content:   item.Content,
		Context:   item.Context,
		Metadata:  item.Metadata,
		CreatedAt: item.CreatedAt,
	}
}

// fromStorageItem converts a storage item back to a core MemoryItem.
//
// The raw similarity score from the store is carried on both score fields;
// contextual retrieval overwrites RelevanceScore with the blended value.
func fromStorageItem(item *storage.Item) *MemoryItem {
	return &MemoryItem{
		ID:              item.ID,
		Category:        Category(item.Category),
		Content:         item.Content,
		Context:         item.Context,
		Metadata:        item.Metadata,
		CreatedAt:       item.CreatedAt,
		RelevanceScore:  item.Score,
		SimilarityScore: item.Score,
	}
}

// fromStorageItems converts a slice of storage items.
func fromStorageItems(items []*storage.Item) []*MemoryItem {
	result := make([]*MemoryItem, len(items))
	for i, item := range items {
		result[i] = fromStorageItem(item)
	}
	return result
}
