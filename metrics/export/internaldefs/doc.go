// Package internaldefs groups the client's metric IDs into labeled families
// and walks a snapshot over them. The Prometheus and OTel exporters are both
// visitors of [Walk], so the two expose the same series under the same labels.
package internaldefs
