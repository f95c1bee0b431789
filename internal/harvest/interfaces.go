package harvest

import "context"

// Fetcher retrieves a page body. Failure is communicated as ok == false,
// never as an error: a missing page must not abort a run.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body []byte, ok bool)
}

// Extractor turns a fetched page into a listing plus optional phone-lookup
// keys. It is a pure function of the page content and URL.
type Extractor interface {
	Extract(content []byte, pageURL string) (Listing, *PhoneLookup)
}

// PhoneResolver exchanges phone-lookup keys for a digits-only phone number.
// ok == false means the number could not be resolved; callers persist the
// listing regardless.
type PhoneResolver interface {
	Resolve(ctx context.Context, lookup PhoneLookup) (phone string, ok bool)
}

// ListingStore is the persistence port consumed by workers. Upsert keys on
// the listing URL and reports whether the row was newly inserted. It must be
// safe for concurrent calls.
type ListingStore interface {
	Upsert(ctx context.Context, l Listing) (inserted bool, err error)
}

// Queue moves discovered listing URLs from the producer to the workers. A
// bounded implementation gives the pipeline backpressure.
type Queue interface {
	Enqueue(ctx context.Context, url string) error
	Dequeue(ctx context.Context) (string, error)
}

// Producer walks the listing index and feeds the queue, finishing with one
// sentinel per worker.
type Producer interface {
	Discover(ctx context.Context, q Queue)
}
