// Package analyzer extracts the page title and detected components from a
// fetched response.
//
// Components are produced by a Registry of rules. Each rule inspects one
// kind of signal: a response header, the meta generator tag, the script
// sources or the lowercased body. The default registry reports server
// headers as "Key: value" and recognizes common CMS and front-end
// frameworks by body markers. Analysis never fails; a page that cannot be
// parsed simply yields fewer signals.
package analyzer
