// Package delivery fans the share link out to the captured contact: one
// email plus one SMS per carrier gateway, since the carrier is unknown and
// only the right gateway will land. Sends are best effort per recipient.
package delivery
