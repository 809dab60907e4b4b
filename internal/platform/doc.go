// Package platform holds the platform registry and the source adapters that
// query each news platform's search endpoint.
//
// Adapters never parse result pages. Naver and Daum expose JSON search APIs and
// Google News exposes an RSS search feed; every adapter maps its response onto
// news.RawItem and strips highlight markup from the text fields.
package platform
