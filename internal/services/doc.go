// Package services implements the external music search providers and the cache-aside [Aggregator] in front of them.
//
// # Provider Interface
//
// Every catalog implements [Provider]: a free-text query and a result-count hint in,
// zero or more [models.SearchResult] values out. Adding a catalog means adding a Provider;
// the aggregator never inspects provider-specific payloads.
//
// # Mail.ru Implementation
//
// [MailRuProvider] calls the my.mail.ru ajax search endpoint with browser-like headers.
// The response is a positional JSON array; the music section sits at index 3 under "MusicData".
//
// # Spotify Implementation
//
// [SpotifyProvider] uses the client-credentials grant from [clientcredentials]; the token is
// fetched and renewed by the transport. Search results are clamped to 50 per request.
//
// # Error Handling
//
// Providers share [APIClient], which bounds each call with a timeout, paces calls with a token
// bucket and converts transport errors, non-2xx statuses and undecodable bodies into
// [*shared.ExternalServiceError]. Envelope shape mismatches map to the same error.
// [Breaker] wraps providers in a circuit breaker so a failing catalog fails fast.
//
// # Caching
//
// [MakeKey] digests (query, limit, provider) with SHA-256 under the "search:" prefix, so the same
// logical query shares one entry across clients. Cache read failures are treated as misses and
// write failures are logged; neither fails the search.
package services
