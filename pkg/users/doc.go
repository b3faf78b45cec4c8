// Package users implements tenant user administration: listing, creating
// local accounts, changing role or status, soft-deleting and triggering
// password resets. It reuses the catalog repository layer over the users
// table, so every write is audited and invalidates the tenant's cached user
// lists.
package users
