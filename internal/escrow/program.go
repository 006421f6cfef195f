package escrow

import (
	"crypto/sha256"
	"sync"

	"git.home.luguber.info/inful/taskescrow/internal/identity"
)

// programIDString is set at build time:
//
//	-ldflags "-X git.home.luguber.info/inful/taskescrow/internal/escrow.programIDString=<base58>"
var programIDString = "HbmvzJKLNfJe5wVDhuFXbncAX9RGAg5x8owjvyuwdV3d"

var programID = sync.OnceValue(func() identity.Identity {
	return identity.MustParse(programIDString)
})

// ProgramID returns the process-wide program identity.
func ProgramID() identity.Identity {
	return programID()
}

// DiscriminatorSize is the length of the record type header.
const DiscriminatorSize = 8

// Discriminator tags every encoded TaskEscrow record.
var Discriminator = accountDiscriminator("TaskEscrow")

func accountDiscriminator(name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}
