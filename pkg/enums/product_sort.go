package enums

// ProductSort orders product search results.
type ProductSort string

const (
	ProductSortRelevance ProductSort = "relevance"
	ProductSortPriceAsc  ProductSort = "price_asc"
	ProductSortPriceDesc ProductSort = "price_desc"
	ProductSortRating    ProductSort = "rating"
	ProductSortNewest    ProductSort = "newest"
)

// ParseProductSort treats empty input as relevance.
func ParseProductSort(value string) (ProductSort, error) {
	if value == "" {
		return ProductSortRelevance, nil
	}
	return parse("sort", value, []ProductSort{
		ProductSortRelevance, ProductSortPriceAsc, ProductSortPriceDesc, ProductSortRating, ProductSortNewest,
	})
}
