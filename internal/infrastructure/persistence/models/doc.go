// Package models maps settlement aggregates to GORM rows. Domain types carry
// no ORM tags; each model has a ToDomain method and a FromDomain constructor.
// Money columns are decimal(18,4) next to a currency column.
package models
