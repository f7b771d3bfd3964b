// Package web is the server-render host for the demo stores.
//
// Every request gets its own registry scope and payload collector. Page
// handlers build populated stores from storage, provide them to the scope,
// render the page through the stores' getters and embed the collected
// snapshots in the document head so the client can continue from the same
// state. Form posts resolve the request's stores from the scope and change
// them only through their public actions.
package web
