// Package credential provides the key/value stores that hold the session
// token between runs.
//
//   - [Memory] keeps values in process and counts operations, for tests.
//   - [Redis] shares the token through a Redis server, for fleets of workers
//     acting as one user.
//   - [File] writes a 0600 JSON file, for CLIs.
package credential
