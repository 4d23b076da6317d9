// Copyright © 2018 One Concern

// Package storage provides an interface to handle small persisted objects.
//
// Objects are files rewritten wholesale: environment manifests and lockfiles,
// pin records and generations metadata. Readers never observe a torn write.
package storage
