// Package store declares the storage capabilities used by the Engine.
//
// Three independent namespaces are modelled: users ([Users]), roles
// ([Roles]) and pending registrations ([Registrations]). Backends live in
// subpackages (memory, redis, postgres) and must report a missing key as
// [ErrNotFound] and any transport or driver failure wrapped in
// [ErrUnavailable].
package store
