// Package uid computes content-addressed identities for stemma artifacts.
//
// An identity is reported as three fields (uid, uid_type, uid_version) so a
// future algorithm change never silently collides with stored UIDs of the
// same string shape.
//
// Weight maps are hashed in lexicographic parameter-name order, each tensor
// contributing the bytes of its row-major contiguous layout. Device placement
// and prior view operations (slices, transposes) never change the digest.
package uid
