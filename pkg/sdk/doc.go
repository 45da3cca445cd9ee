// Package archipanion is a Go client for the archipanion retrieval engine HTTP API.
//
// Schemas and pipelines are declared in the server configuration; the client
// inspects them, starts extraction jobs and answers information needs.
//
//	client, _ := archipanion.New("http://localhost:8080", archipanion.WithAPIKey(key))
//	job, _ := client.Extract(ctx, "media", "local")
//	job, _ = client.Wait(ctx, job.ID, time.Second)
//
//	results, _ := client.Query("media").
//	    Text("q", "a dog on a beach").
//	    Retrieve("clip", "clip", "q").
//	    Transform("top", "Limit", "clip", map[string]string{"limit": "10"}).
//	    Output("top").
//	    Do(ctx)
package archipanion
