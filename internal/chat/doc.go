// Package chat defines the domain chat message document persisted in
// the messages table. The persistence layer validates these documents
// at write time and stores them as opaque JSON; their shape is owned
// here, not by the store.
package chat
