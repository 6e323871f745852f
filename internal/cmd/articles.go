package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/git2doc/internal/articles"
)

func newArticlesCmd() *cobra.Command {
	articlesCmd := &cobra.Command{
		Use:   "articles",
		Short: "Read the service's public articles",
	}

	var skip, limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List articles",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			list, err := a.articles.List(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return a.render.articles(list)
		}),
	}
	listCmd.Flags().IntVar(&skip, "skip", 0, "number of articles to skip")
	listCmd.Flags().IntVar(&limit, "limit", articles.DefaultLimit, "maximum number of articles to show")

	articlesCmd.AddCommand(listCmd)
	articlesCmd.AddCommand(&cobra.Command{
		Use:   "show <slug>",
		Short: "Show an article",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			article, err := a.articles.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render.article(article)
		}),
	})
	return articlesCmd
}
