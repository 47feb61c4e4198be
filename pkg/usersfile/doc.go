// Package usersfile authenticates HOTP users against a flat credential file
// shared between processes, in the UsersFile format:
//
//	<type> <username> <password|-> <secret-hex> [<counter>] [<last-otp>] [<last-timestamp>]
//
// where <type> is one of HOTP, HOTP/E, HOTP/E/6, HOTP/E/7 or HOTP/E/8 and
// selects the code length. Example line:
//
//	HOTP/E/6	alice	-	3132333435363738393031323334353637383930	0
//
// A successful authentication advances the user's counter by the offset the
// code was found at within the search window, records the accepted code and a
// timestamp, and rewrites the file atomically: the updated content is staged
// in <path>.new and renamed into place while an exclusive lock on
// <path>.lock serializes writers across processes. Reads are not locked; two
// concurrent authentications can both validate against the same starting
// counter, and the last writer's counter wins. Each individual rewrite is
// atomic, so readers never observe a partially written file.
//
// Re-presenting the last accepted code is reported as a replay via
// ReplayError without touching the file.
//
//	auth, err := usersfile.NewAuthenticator(usersfile.Config{
//	    Path:   "/etc/users.oath",
//	    Window: 5,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = auth.Authenticate(ctx, "alice", "755224")
//	var replay *usersfile.ReplayError
//	switch {
//	case err == nil:
//	    // authenticated; counter advanced and persisted
//	case errors.As(err, &replay):
//	    log.Printf("replayed otp, last success at %v", replay.LastAuth)
//	default:
//	    // treat every other outcome as authentication failure
//	}
package usersfile
